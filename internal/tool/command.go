package tool

import (
	"fmt"
	"strings"
)

// Interpreter binaries used to launch non-compiled tools.
const (
	pythonInterpreter = "python3"
	nodeInterpreter   = "node"
)

// stageSeparator splits a multi-stage build command ("./configure && make")
// into sequential argv stages. It is a list token, never handed to a shell.
const stageSeparator = "&&"

// BuildStages splits the descriptor's build command into ordered argv
// stages. Each stage runs as its own process; a stage's non-zero exit fails
// the build and skips the remaining stages. An empty build command yields no
// stages.
func (d *ToolDescriptor) BuildStages() [][]string {
	var stages [][]string
	var current []string

	for _, arg := range d.BuildCommand {
		if arg == stageSeparator {
			if len(current) > 0 {
				stages = append(stages, current)
				current = nil
			}
			continue
		}
		current = append(current, arg)
	}
	if len(current) > 0 {
		stages = append(stages, current)
	}

	return stages
}

// LaunchCommand builds the argument-array command that runs this tool
// against target. The target is appended as a single argv element; it is
// never interpolated into a shell string.
//
// Tools with an explicit RunCommand use it verbatim plus the target.
// Otherwise the command is derived from the build type: compiled tools run
// their binary directly, interpreted tools run under python3, scripted tools
// under node.
func (d *ToolDescriptor) LaunchCommand(target string) ([]string, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	if len(d.RunCommand) > 0 {
		cmd := append([]string(nil), d.RunCommand...)
		return append(cmd, target), nil
	}

	switch d.BuildType {
	case BuildTypeCompiled:
		return []string{d.ExecutablePath, target}, nil
	case BuildTypeInterpretedDeps:
		return []string{pythonInterpreter, d.ExecutablePath, target}, nil
	case BuildTypeScripted:
		return []string{nodeInterpreter, d.ExecutablePath, target}, nil
	default:
		return nil, fmt.Errorf("no launch rule for build type: %s", d.BuildType)
	}
}

// ValidateTarget checks that a scan target is safe to place in an argument
// array: non-empty, reasonably sized, and free of whitespace and control
// characters. Hostnames, IPs, URLs, and phone-style identifiers all pass.
func ValidateTarget(target string) error {
	if target == "" {
		return fmt.Errorf("target cannot be empty")
	}

	if len(target) > 2048 {
		return fmt.Errorf("target exceeds maximum length of 2048 characters")
	}

	if strings.ContainsAny(target, " \t\r\n") {
		return fmt.Errorf("target must not contain whitespace: %q", target)
	}

	for _, r := range target {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("target contains control characters")
		}
	}

	return nil
}
