package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docfill/internal/docerr"
	"github.com/hyperjump/docfill/internal/testutil"
)

type call struct {
	name string
	args []string
}

// fakeRunner stands in for LibreOffice. Behaviour is chosen per command name.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	behave map[string]func(args []string) ([]byte, error)
}

func (f *fakeRunner) Run(name string, args []string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
	fn := f.behave[name]
	f.mu.Unlock()
	if fn == nil {
		return []byte("command not found"), errors.New("exec: not found")
	}
	return fn(args)
}

func (f *fakeRunner) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.name
	}
	return out
}

// produce writes data where LibreOffice would: <outdir>/<input stem>.pdf.
func produce(data []byte) func(args []string) ([]byte, error) {
	return func(args []string) ([]byte, error) {
		outDir, input := args[4], args[5]
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		return nil, os.WriteFile(filepath.Join(outDir, stem+".pdf"), data, 0600)
	}
}

func fail(msg string) func(args []string) ([]byte, error) {
	return func([]string) ([]byte, error) { return []byte(msg), errors.New("exit status 1") }
}

func silent() func(args []string) ([]byte, error) {
	return func([]string) ([]byte, error) { return nil, nil }
}

func newTestConverter(t *testing.T, runner Runner, opts ...Option) (*OfficeConverter, string) {
	t.Helper()
	dir := t.TempDir()
	base := []Option{
		WithCommand(Command{Primary: "soffice", Fallback: "libreoffice"}),
		WithTempDir(dir),
		WithRunner(runner),
	}
	return NewOfficeConverter(append(base, opts...)...), dir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files left behind")
}

func TestConvert_PrimarySucceeds(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice": produce([]byte("%PDF-primary")),
	}}
	c, dir := newTestConverter(t, runner)

	out, err := c.Convert(context.Background(), []byte("docx bytes"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-primary", string(out))
	assert.Equal(t, []string{"soffice"}, runner.names())
	assertEmptyDir(t, dir)
}

func TestConvert_InvocationArguments(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice": produce([]byte("pdf")),
	}}
	c, dir := newTestConverter(t, runner)
	_, err := c.Convert(context.Background(), []byte("docx"))
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	args := runner.calls[0].args
	require.Len(t, args, 6)
	assert.Equal(t, []string{"--headless", "--convert-to", "pdf", "--outdir", dir}, args[:5])
	assert.Equal(t, dir, filepath.Dir(args[5]))
	assert.True(t, strings.HasPrefix(filepath.Base(args[5]), "docfill_"))
	assert.Equal(t, ".docx", filepath.Ext(args[5]))
}

func TestConvert_FallbackSucceeds(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice":     fail("soffice: command not found"),
		"libreoffice": produce([]byte("%PDF-fallback")),
	}}
	c, dir := newTestConverter(t, runner)

	out, err := c.Convert(context.Background(), []byte("docx"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fallback", string(out))
	assert.Equal(t, []string{"soffice", "libreoffice"}, runner.names())
	assertEmptyDir(t, dir)
}

func TestConvert_BothFail(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice":     fail("boom"),
		"libreoffice": fail("still boom"),
	}}
	c, dir := newTestConverter(t, runner)

	_, err := c.Convert(context.Background(), []byte("docx"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerr.ErrConversionUnavailable), "err = %v", err)
	assert.Contains(t, err.Error(), "ensure LibreOffice is installed")
	assert.Equal(t, []string{"soffice", "libreoffice"}, runner.names(), "exactly one fallback attempt")
	assertEmptyDir(t, dir)
}

func TestConvert_CleanExitWithoutOutputTriggersFallback(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice":     silent(),
		"libreoffice": produce([]byte("pdf")),
	}}
	c, _ := newTestConverter(t, runner)

	out, err := c.Convert(context.Background(), []byte("docx"))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(out))
	assert.Equal(t, []string{"soffice", "libreoffice"}, runner.names())
}

func TestConvert_VerifyRejectsUnreadableOutput(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice":     produce([]byte("garbage")),
		"libreoffice": produce(testutil.PDF(1)),
	}}
	c, _ := newTestConverter(t, runner, WithVerify(true))

	out, err := c.Convert(context.Background(), []byte("docx"))
	require.NoError(t, err)
	assert.Equal(t, testutil.PDF(1), out)
	assert.Equal(t, []string{"soffice", "libreoffice"}, runner.names())
}

func TestConvert_NoFallbackConfigured(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice": fail("nope"),
	}}
	c, _ := newTestConverter(t, runner, WithCommand(Command{Primary: "soffice"}))

	_, err := c.Convert(context.Background(), []byte("docx"))
	assert.True(t, errors.Is(err, docerr.ErrConversionUnavailable), "err = %v", err)
	assert.Equal(t, []string{"soffice"}, runner.names())
}

func TestConvert_CleanupFailureIsSwallowed(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice": produce([]byte("pdf")),
	}}
	c, _ := newTestConverter(t, runner)
	var mu sync.Mutex
	var attempted []string
	c.remove = func(p string) error {
		mu.Lock()
		attempted = append(attempted, p)
		mu.Unlock()
		return errors.New("permission denied")
	}

	out, err := c.Convert(context.Background(), []byte("docx"))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(out))

	var sawInput, sawOutput bool
	for _, p := range attempted {
		sawInput = sawInput || filepath.Ext(p) == ".docx"
		sawOutput = sawOutput || filepath.Ext(p) == ".pdf"
	}
	assert.True(t, sawInput && sawOutput, "cleanup not attempted for both files: %v", attempted)
}

func TestConvert_CleanupAfterFailure(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice": func(args []string) ([]byte, error) {
			_, _ = produce([]byte("partial"))(args)
			return nil, errors.New("crashed after writing")
		},
		"libreoffice": fail("missing"),
	}}
	c, dir := newTestConverter(t, runner)

	_, err := c.Convert(context.Background(), []byte("docx"))
	require.Error(t, err)
	assertEmptyDir(t, dir)
}

func TestConvert_CancelledBeforeStart(t *testing.T) {
	runner := &fakeRunner{}
	c, _ := newTestConverter(t, runner)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Convert(ctx, []byte("docx"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, runner.names())
}

func TestConvert_ConcurrentRunsUseDistinctTempFiles(t *testing.T) {
	runner := &fakeRunner{behave: map[string]func([]string) ([]byte, error){
		"soffice": produce([]byte("pdf")),
	}}
	c, _ := newTestConverter(t, runner)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Convert(context.Background(), []byte("docx"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, cl := range runner.calls {
		input := cl.args[5]
		assert.False(t, seen[input], "temp input reused: %s", input)
		seen[input] = true
	}
	assert.Len(t, seen, n)
}

func TestCommandFor(t *testing.T) {
	assert.Equal(t, Command{Primary: "soffice", Fallback: "libreoffice"}, CommandFor("windows"))
	assert.Equal(t, "/Applications/LibreOffice.app/Contents/MacOS/soffice", CommandFor("darwin").Primary)
	assert.Equal(t, Command{Primary: "libreoffice", Fallback: "soffice"}, CommandFor("linux"))
	assert.Equal(t, CommandFor("linux"), CommandFor("freebsd"))
	for goos, c := range Commands {
		assert.NotEqual(t, c.Primary, c.Fallback, "%s fallback must differ from primary", goos)
	}
}

func TestDetect_skipsEmptyAndReportsMissing(t *testing.T) {
	st := Detect(Command{Primary: "docfill-definitely-missing-binary"})
	require.Len(t, st, 1)
	assert.Equal(t, "primary", st[0].Role)
	assert.False(t, st[0].Found)
}
