package cli

var (
	NewRootCommand = newRootCommand
	UserMessage    = userMessage
)
