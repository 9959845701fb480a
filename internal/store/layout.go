package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrInvalidID is returned for agent or session ids that are not safe
// to use as path components.
var ErrInvalidID = errors.New("invalid id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// CheckID rejects ids that could escape the storage root.
func CheckID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Layout maps agent data onto the filesystem:
//
//	<root>/<agentID>/agent.json
//	<root>/<agentID>/sessions.json
//	<root>/<agentID>/chats/<sessionID>.json
//	<root>/<agentID>/deployment.json
//	<root>/<agentID>/documents/
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

func (l Layout) AgentDir(agentID string) string {
	return filepath.Join(l.Root, agentID)
}

func (l Layout) AgentFile(agentID string) string {
	return filepath.Join(l.AgentDir(agentID), "agent.json")
}

func (l Layout) SessionsFile(agentID string) string {
	return filepath.Join(l.AgentDir(agentID), "sessions.json")
}

func (l Layout) ChatsDir(agentID string) string {
	return filepath.Join(l.AgentDir(agentID), "chats")
}

func (l Layout) HistoryFile(agentID, sessionID string) string {
	return filepath.Join(l.ChatsDir(agentID), sessionID+".json")
}

func (l Layout) DeploymentFile(agentID string) string {
	return filepath.Join(l.AgentDir(agentID), "deployment.json")
}

func (l Layout) DocumentsDir(agentID string) string {
	return filepath.Join(l.AgentDir(agentID), "documents")
}

// AgentIDs lists every agent directory under the root. A missing root
// yields no ids.
func (l Layout) AgentIDs() ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && CheckID(e.Name()) == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
