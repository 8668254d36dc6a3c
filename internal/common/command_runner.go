package common

import (
	"context"

	"jobapplicator/internal/errors"
)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc is a generic function signature for any pipeline operation.
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunCommand encapsulates the common logic for CLI commands: log, run the
// operation, then format and write its result.
func RunCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	input Input,
	operation OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	outputHandler := NewOutputHandler(logger)

	if err := ValidateOutputFormat(cmdConfig.OutputFormat, outputHandler.GetSupportedFormats()); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat, "Invalid output format", err)
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, err := operation(ctx, input)
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
