package tools

import "github.com/codeready-toolchain/agentrt/pkg/models"

// Built-in tool names, matching the IDE tool executor's supported set
// (spec §6).
const (
	ReadFile      = "read_file"
	WriteFile     = "write_file"
	ListFiles     = "list_files"
	CreateDir     = "create_directory"
	ExecuteCmd    = "execute_command"
	SearchInCode  = "search_in_code"
)

// ReadFileArgs is the argument shape for read_file, used only to
// generate its JSON Schema — see builtinArgShapes.
type ReadFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Path to the file to read"`
}

// WriteFileArgs is the argument shape for write_file.
type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"required"`
	Content string `json:"content" jsonschema:"required"`
}

// ListFilesArgs is the argument shape for list_files.
type ListFilesArgs struct {
	Path      string `json:"path" jsonschema:"required"`
	Recursive bool   `json:"recursive,omitempty"`
}

// CreateDirectoryArgs is the argument shape for create_directory.
type CreateDirectoryArgs struct {
	Path string `json:"path" jsonschema:"required"`
}

// ExecuteCommandArgs is the argument shape for execute_command.
type ExecuteCommandArgs struct {
	Command string   `json:"command" jsonschema:"required"`
	Args    []string `json:"args,omitempty"`
	Cwd     string   `json:"cwd,omitempty"`
}

// SearchInCodeArgs is the argument shape for search_in_code.
type SearchInCodeArgs struct {
	Query string `json:"query" jsonschema:"required"`
	Path  string `json:"path,omitempty"`
}

// builtinArgShapes maps each built-in tool name to the Go struct its
// JSON Schema is generated from.
var builtinArgShapes = map[string]any{
	ReadFile:     ReadFileArgs{},
	WriteFile:    WriteFileArgs{},
	ListFiles:    ListFilesArgs{},
	CreateDir:    CreateDirectoryArgs{},
	ExecuteCmd:   ExecuteCommandArgs{},
	SearchInCode: SearchInCodeArgs{},
}

var builtinDescriptions = map[string]string{
	ReadFile:     "Read the contents of a file.",
	WriteFile:    "Write (overwriting) the contents of a file.",
	ListFiles:    "List files under a directory.",
	CreateDir:    "Create a directory, including parents.",
	ExecuteCmd:   "Execute a shell command in the workspace.",
	SearchInCode: "Search the codebase for a text or regex query.",
}

var builtinPermissions = map[string]string{
	ReadFile:     "readonly",
	WriteFile:    "mutating",
	ListFiles:    "readonly",
	CreateDir:    "mutating",
	ExecuteCmd:   "mutating",
	SearchInCode: "readonly",
}

// BuiltinModes says which tools are executed where. All six built-ins
// are IDE-side per spec §6's IDE tool executor section.
var BuiltinModes = map[string]models.ToolExecutionMode{
	ReadFile:     models.ToolExecIDE,
	WriteFile:    models.ToolExecIDE,
	ListFiles:    models.ToolExecIDE,
	CreateDir:    models.ToolExecIDE,
	ExecuteCmd:   models.ToolExecIDE,
	SearchInCode: models.ToolExecIDE,
}
