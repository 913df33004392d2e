package api

// ActionKind names the build step an action describes.
// Unknown kinds are carried through untouched.
type ActionKind string

const (
	// KindFile creates (or recreates) a file at Path with Payload as contents.
	KindFile ActionKind = "file"
	// KindShell runs Payload as a shell command inside the sandbox.
	KindShell ActionKind = "shell"
)

// ActionStatus is the two-state lifecycle of an action.
type ActionStatus string

const (
	StatusPending   ActionStatus = "pending"
	StatusCompleted ActionStatus = "completed"
)

// Action is one build step produced by the generation service.
type Action struct {
	// Kind selects what the action does.
	Kind ActionKind `json:"type" yaml:"type"`
	// Title is the human label shown next to the step (optional).
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	// Path is a slash-delimited path relative to the project root (file actions only).
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Payload holds file contents for file actions, the command line for shell actions.
	Payload string `json:"code,omitempty" yaml:"code,omitempty"`
	// Status is pending until a reconciliation pass marks it completed.
	Status ActionStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// IsPending reports whether the action still awaits reconciliation.
// An empty status counts as pending so freshly decoded actions need no fix-up.
func (a Action) IsPending() bool {
	return a.Status == "" || a.Status == StatusPending
}

// IsCreateFile reports whether the action is consumed by tree building.
func (a Action) IsCreateFile() bool {
	return a.Kind == KindFile
}
