package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/flutlabs/pxflood/internal/control"
)

// state caches the last directive the control API handed out, so a restart
// can resume flooding the last-known wall while the API is unreachable.
type state struct {
	DX        int       `json:"dx"`
	DY        int       `json:"dy"`
	ImageURL  string    `json:"image_url"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Mode      string    `json:"mode"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (st state) directive() control.Directive {
	return control.Directive{
		DX:       st.DX,
		DY:       st.DY,
		ImageURL: st.ImageURL,
		Host:     st.Host,
		Port:     st.Port,
		Mode:     st.Mode,
	}
}

func stateFromDirective(d control.Directive) state {
	return state{
		DX:        d.DX,
		DY:        d.DY,
		ImageURL:  d.ImageURL,
		Host:      d.Host,
		Port:      d.Port,
		Mode:      d.Mode,
		UpdatedAt: time.Now(),
	}
}

func stateFile(dir string) string { return filepath.Join(dir, "status.json") }

func loadState(dir string) (state, error) {
	b, err := os.ReadFile(stateFile(dir))
	if err != nil {
		return state{}, err
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return state{}, err
	}
	return st, nil
}

func saveState(dir string, st state) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := stateFile(dir) + ".tmp"
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, stateFile(dir))
}
