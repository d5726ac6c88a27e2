package models

import (
	"strings"
	"time"
)

// Folder identifies a mailbox folder. The zero value is the mailbox root.
type Folder struct {
	Name      string
	Path      string
	Delimiter string
}

func (f Folder) IsRoot() bool {
	return f.Path == ""
}

// Child returns the path a subfolder called name would have.
func (f Folder) Child(name string) Folder {
	if f.IsRoot() {
		return Folder{Name: name, Path: name, Delimiter: f.Delimiter}
	}
	return Folder{Name: name, Path: f.Path + f.Delimiter + name, Delimiter: f.Delimiter}
}

func (f Folder) String() string {
	if f.IsRoot() {
		return "/"
	}
	return f.Path
}

// FolderFromPath builds a Folder from a full path, taking the last segment as its name.
func FolderFromPath(path, delimiter string) Folder {
	name := path
	if delimiter != "" {
		if idx := strings.LastIndex(path, delimiter); idx >= 0 {
			name = path[idx+len(delimiter):]
		}
	}
	return Folder{Name: name, Path: path, Delimiter: delimiter}
}

// FolderTriple holds the three durable locations of the workflow.
type FolderTriple struct {
	Source     Folder
	Root       Folder
	Processing Folder
	Done       Folder
}

// ClaimToken proves ownership of a message moved into Processing.
// It is created by a claim and consumed by exactly one completion.
type ClaimToken struct {
	Message   *VoicemailMessage
	ClaimedAt time.Time
	consumed  bool
}

func NewClaimToken(message *VoicemailMessage, claimedAt time.Time) *ClaimToken {
	return &ClaimToken{Message: message, ClaimedAt: claimedAt}
}

func (t *ClaimToken) Consumed() bool {
	return t.consumed
}

func (t *ClaimToken) Consume() {
	t.consumed = true
}
