package embedding

// Pooling modes for ONNX models.
const (
	// PoolingNone reads a sentence embedding of shape [1, dims] straight from the output.
	PoolingNone = "none"
	// PoolingMean averages a [1, tokens, dims] hidden state over the attended tokens (e5, MiniLM).
	PoolingMean = "mean"
)

var onnxInputNames = [3]string{"input_ids", "attention_mask", "token_type_ids"}

// ONNXConfig describes a local sentence-embedding model.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// OutputName is the graph output to read; "output" by default, "last_hidden_state" for
	// models exported without a pooling head.
	OutputName string
	Pooling    string
	// TextPrefix is prepended to every input, e.g. "query: " for e5 models.
	TextPrefix string
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.MaxTokens <= 2 {
		c.MaxTokens = 256
	}
	if c.Pooling == "" {
		c.Pooling = PoolingNone
	}
	if c.OutputName == "" {
		c.OutputName = "output"
		if c.Pooling == PoolingMean {
			c.OutputName = "last_hidden_state"
		}
	}
	return c
}

// meanPool averages the token vectors of hidden ([tokens*dims], row per token) whose mask is set.
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for tok, m := range mask {
		if m == 0 || (tok+1)*dims > len(hidden) {
			continue
		}
		row := hidden[tok*dims : (tok+1)*dims]
		for j, v := range row {
			out[j] += v
		}
		n++
	}
	if n == 0 {
		return out
	}
	for j := range out {
		out[j] /= n
	}
	return out
}
