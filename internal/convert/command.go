package convert

import (
	"os/exec"
)

// Command is a primary converter executable and the alternate name retried
// once when the primary fails.
type Command struct {
	Primary  string `yaml:"primary" json:"primary"`
	Fallback string `yaml:"fallback" json:"fallback"`
}

// Commands is the per-OS converter table, keyed by GOOS.
var Commands = map[string]Command{
	"windows": {Primary: "soffice", Fallback: "libreoffice"},
	"darwin":  {Primary: "/Applications/LibreOffice.app/Contents/MacOS/soffice", Fallback: "libreoffice"},
	"linux":   {Primary: "libreoffice", Fallback: "soffice"},
}

// CommandFor returns the command pair for goos. Systems without an entry use the linux pair.
func CommandFor(goos string) Command {
	if c, ok := Commands[goos]; ok {
		return c
	}
	return Commands["linux"]
}

// Args returns the headless conversion arguments for input, writing the PDF into outDir.
func Args(input, outDir string) []string {
	return []string{"--headless", "--convert-to", "pdf", "--outdir", outDir, input}
}

// Runner launches a converter process and waits for it to exit.
type Runner interface {
	Run(name string, args []string) ([]byte, error)
}

// ExecRunner runs commands with os/exec, without a shell.
type ExecRunner struct{}

// Run implements Runner and returns the combined stdout and stderr.
func (ExecRunner) Run(name string, args []string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// CommandStatus reports whether a converter executable resolves on this host.
type CommandStatus struct {
	Role     string `json:"role"`
	Command  string `json:"command"`
	Resolved string `json:"resolved,omitempty"`
	Found    bool   `json:"found"`
}

// Detect looks up both commands of c.
func Detect(c Command) []CommandStatus {
	out := make([]CommandStatus, 0, 2)
	for _, e := range []struct{ role, name string }{{"primary", c.Primary}, {"fallback", c.Fallback}} {
		if e.name == "" {
			continue
		}
		st := CommandStatus{Role: e.role, Command: e.name}
		if p, err := exec.LookPath(e.name); err == nil {
			st.Resolved = p
			st.Found = true
		}
		out = append(out, st)
	}
	return out
}
