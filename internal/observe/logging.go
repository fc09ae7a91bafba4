package observe

import "go.uber.org/zap"

// NewLogger builds the process logger: human-readable development output
// with debug level when debug is set, JSON production output otherwise.
func NewLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		logger, err = cfg.Build()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
