package chat

var (
	CompressHistory   = compressHistory
	SummarizeContents = summarizeContents
	IsTokenLimitError = isTokenLimitError
)
