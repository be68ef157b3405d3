package feeders

import "errors"

var (
	ErrEnvInvalidStructure = errors.New("env: expected pointer to struct")
	ErrEnvFieldCannotBeSet = errors.New("env: field cannot be set")
	ErrUnsupportedFileType = errors.New("unsupported config file type")
)
