package ocr

// EngineOptions configures the linked OCR engine.
type EngineOptions struct {
	// TessdataPrefix points at the directory holding traineddata files.
	// Empty uses the engine default.
	TessdataPrefix string `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
}

// NewEngine returns the engine linked into this build. Builds without the
// `tesseract` tag return an engine that fails every call with ErrNoEngine.
func NewEngine(opts EngineOptions) (Engine, error) { return newDefaultEngine(opts) }
