package ports

// Tokenizer converts between text and the model's token ids.
type Tokenizer interface {
	// Encode tokenizes text without adding special tokens.
	Encode(text string) ([]int, error)
	// EncodeWithSpecial tokenizes text and adds the model's special tokens
	// (BOS/EOS) the way the model expects them around a single sequence.
	EncodeWithSpecial(text string) ([]int, error)
	Decode(ids []int, skipSpecial bool) (string, error)
	// EOSToken is the end-of-sequence marker text, empty if the model has none.
	EOSToken() string
	// ModelMaxLength is the maximum input length in tokens, 0 when unknown.
	ModelMaxLength() int
}
