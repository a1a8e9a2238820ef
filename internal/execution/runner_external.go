package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/scopeflow/scopeflow/internal/pipeline"
)

// ExternalCommandRunner hands a value to an external program. The input
// is serialized to a temporary file, the program runs with a bounded
// timeout, and an expected output artifact is parsed back as the
// result. Process failure and timeout both become node failures, the
// timeout wrapping ErrTimeout.
//
// Config keys: "command" (required), "args" (list; the placeholders
// {input} and {output} expand to the artifact paths), "timeout_seconds",
// "output_path" (default: <input>.out.json).
type ExternalCommandRunner struct{}

func (r *ExternalCommandRunner) Run(ctx context.Context, req *Request) error {
	command := configString(req.Node.Config, "command", "")
	if command == "" {
		return fmt.Errorf("command is not configured")
	}

	v, ok, err := req.Input(pipeline.PortInput)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("input produced no value")
	}

	inputPath, err := r.writeInput(v)
	if err != nil {
		return err
	}
	defer os.Remove(inputPath)

	outputPath := configString(req.Node.Config, "output_path", inputPath+".out.json")
	defer os.Remove(outputPath)

	if err := r.invoke(ctx, req, command, inputPath, outputPath); err != nil {
		return err
	}

	result, err := r.readOutput(outputPath)
	if err != nil {
		return err
	}
	return req.Publish(pipeline.PortResult, result)
}

func (r *ExternalCommandRunner) writeInput(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serializing input: %w", err)
	}
	f, err := os.CreateTemp("", "scopeflow-cmd-*.json")
	if err != nil {
		return "", fmt.Errorf("creating input file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing input file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing input file: %w", err)
	}
	return f.Name(), nil
}

func (r *ExternalCommandRunner) invoke(ctx context.Context, req *Request, command, inputPath, outputPath string) error {
	timeout := configDuration(req.Node.Config, "timeout_seconds", req.Options.CommandTimeout)
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := configStrings(req.Node.Config, "args")
	expanded := make([]string, len(args))
	for i, arg := range args {
		arg = strings.ReplaceAll(arg, "{input}", inputPath)
		arg = strings.ReplaceAll(arg, "{output}", outputPath)
		expanded[i] = arg
	}
	if len(args) == 0 {
		expanded = []string{inputPath, outputPath}
	}

	cmd := exec.CommandContext(cmdCtx, command, expanded...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cmdCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("command %s exceeded %s: %w", filepath.Base(command), timeout, ErrTimeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("command %s failed: %v: %s", filepath.Base(command), err, msg)
		}
		return fmt.Errorf("command %s failed: %w", filepath.Base(command), err)
	}
	return nil
}

func (r *ExternalCommandRunner) readOutput(outputPath string) (any, error) {
	data, err := os.ReadFile(outputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("command produced no output artifact at %s", outputPath)
		}
		return nil, fmt.Errorf("reading output artifact: %w", err)
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing output artifact: %w", err)
	}
	return result, nil
}
