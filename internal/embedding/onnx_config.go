package embedding

// ONNXConfig configures the ONNX Runtime embedder.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// OutputName is the model output holding the pooled sentence embedding.
	OutputName string
}
