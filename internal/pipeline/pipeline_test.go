package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/images"
	"github.com/conneroisu/folio/internal/kvstore"
	"github.com/conneroisu/folio/internal/placeholder"
	"github.com/conneroisu/folio/internal/renderer"
	"github.com/conneroisu/folio/internal/variables"
)

type failingRenderer struct {
	panics bool
}

func (f failingRenderer) Render(context.Context, string, *placeholder.ComponentMap) (string, error) {
	if f.panics {
		panic("boom")
	}
	return "", stderrors.New("renderer exploded")
}

func (failingRenderer) Format() renderer.Format { return renderer.FormatHTML }

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func hasKind(diags []*errors.Diagnostic, kind errors.Kind) bool {
	for _, d := range diags {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestRunSubstitution(t *testing.T) {
	p := New()

	result := p.Run(context.Background(), Input{
		Text:      "Hello {{city}}!",
		Variables: variables.NewSet(variables.Variable{Name: "city", Value: "Paris"}),
	})

	assert.Equal(t, "Hello Paris!", result.Expanded)
	assert.Equal(t, "Hello Paris!", result.Output)
	assert.False(t, result.HasDiagnostics())
	assert.Equal(t, uint64(1), result.Generation)
}

func TestRunProgressRoundTrip(t *testing.T) {
	p := New(WithRenderer(renderer.NewHTMLRenderer()))

	result := p.Run(context.Background(), Input{Text: "[progress:42:Done]"})

	require.Equal(t, 1, result.Components.Len())
	entry := result.Components.Entries()[0]
	assert.Contains(t, result.Rewritten, entry.Marker)
	assert.NotContains(t, result.Rewritten, "[progress:")
	assert.Contains(t, result.Output, `value="42"`)
	assert.Contains(t, result.Output, "42% Done")
	assert.Equal(t, result.Generation, result.Components.Generation())
}

func TestRunUnknownChartStaysLiteral(t *testing.T) {
	text := "```chart\nradar\nA: 1\n```\n"

	result := New().Run(context.Background(), Input{Text: text})

	assert.Equal(t, 0, result.Components.Len())
	assert.Equal(t, text, result.Output)
	assert.True(t, hasKind(result.Diagnostics, errors.KindUnknownComponentKeyword))
}

func TestRunResolvesImages(t *testing.T) {
	index := images.NewIndex()
	index.Add(&images.EmbeddedImage{Name: "diagram.PNG", DataURI: "data:image/png;base64,AA=="})

	result := New().Run(context.Background(), Input{
		Text:   "![x](diagram.png) ![y](missing.png)",
		Images: index,
	})

	assert.Equal(t, "![x](data:image/png;base64,AA==) ![y](missing.png)", result.Resolved)
	assert.Equal(t, 1, result.Images.Matched)
	assert.Equal(t, 1, result.Images.Unmatched)
}

func TestRunRendererFailureFallsBack(t *testing.T) {
	for name, r := range map[string]failingRenderer{"error": {}, "panic": {panics: true}} {
		t.Run(name, func(t *testing.T) {
			p := New(WithRenderer(r))

			result := p.Run(context.Background(), Input{Text: "Before\n\n::: tip\nHi\n:::\n"})

			require.True(t, hasKind(result.Diagnostics, errors.KindRenderFailed))
			assert.Equal(t, "Before\n\n::: tip\nHi\n:::\n", strings.TrimRight(result.Output, "\n")+"\n")
		})
	}
}

func TestRunRendererErrorMessage(t *testing.T) {
	result := New(WithRenderer(failingRenderer{})).Run(context.Background(), Input{Text: "x"})

	require.Len(t, result.Diagnostics, 1)
	d := result.Diagnostics[0]
	assert.Equal(t, errors.KindRenderFailed, d.Kind)
	assert.Equal(t, "html renderer failed: renderer exploded", d.Message)
}

func TestRunCollectsDiagnostics(t *testing.T) {
	vars := variables.NewSet(variables.Variable{Name: "items", Value: "not json", Type: variables.TypeList})

	result := New().Run(context.Background(), Input{
		Text:      "{{#items}}x{{/items}} {{= 1 / 0}} {{#if ghost}}y{{/if}}",
		Variables: vars,
	})

	assert.True(t, hasKind(result.Diagnostics, errors.KindListParseFailed))
	assert.True(t, hasKind(result.Diagnostics, errors.KindExpressionEvalFailed))
	assert.True(t, hasKind(result.Diagnostics, errors.KindUndeclaredVariable))
	assert.Contains(t, result.Output, "{{#items}}x{{/items}}")
}

func TestGenerationsIncrease(t *testing.T) {
	p := New()
	first := p.Run(context.Background(), Input{Text: "a"})
	second := p.Run(context.Background(), Input{Text: "b"})

	assert.Less(t, first.Generation, second.Generation)
	assert.Equal(t, second.Generation, p.Generation())
}

func newSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	opts = append([]SessionOption{WithDebounce(20 * time.Millisecond), WithBatchFloor(0)}, opts...)
	s, err := NewSession(New(), opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSessionDebouncesUpdates(t *testing.T) {
	s := newSession(t)
	results := make(chan *Result, 10)
	s.Subscribe(func(r *Result) { results <- r })

	s.Update("one")
	s.Update("two")
	s.Update("three")

	select {
	case r := <-results:
		assert.Equal(t, "three", r.Output)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}

	select {
	case r := <-results:
		t.Fatalf("unexpected extra result %q", r.Output)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, "three", s.Latest().Output)
}

func TestSessionFlushAndUnsubscribe(t *testing.T) {
	s := newSession(t, WithDebounce(time.Hour))
	calls := 0
	unsubscribe := s.Subscribe(func(*Result) { calls++ })

	s.Update("now")
	result := s.Flush(context.Background())
	assert.Equal(t, "now", result.Output)
	assert.Equal(t, 1, calls)

	unsubscribe()
	s.Flush(context.Background())
	assert.Equal(t, 1, calls)
}

func TestSessionDiscardsStaleResults(t *testing.T) {
	s := newSession(t)
	var delivered []uint64
	s.Subscribe(func(r *Result) { delivered = append(delivered, r.Generation) })

	s.mu.Lock()
	s.latest = 5
	s.mu.Unlock()

	s.deliver(&Result{Generation: 4})
	s.deliver(&Result{Generation: 5})
	s.deliver(&Result{Generation: 5})

	assert.Equal(t, []uint64{5}, delivered)
	assert.Equal(t, uint64(5), s.Latest().Generation)
}

func TestSessionLoadReplacesVariables(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.SetVariable(variables.Variable{Name: "old", Value: "x"}))

	result, err := s.Load(context.Background(), "Hi {{name}}",
		variables.NewSet(variables.Variable{Name: "name", Value: "Ada"}))

	require.NoError(t, err)
	assert.Equal(t, "Hi Ada", result.Output)
	assert.Equal(t, []string{"name"}, s.Variables().Names())
}

func TestSessionUpload(t *testing.T) {
	s := newSession(t)
	s.Update("![logo](./images/logo.png)")

	batch, err := s.Upload(context.Background(), []images.Asset{
		{Name: "logo.png", Data: smallPNG(t)},
		{Name: "junk.txt", Data: []byte("nope")},
	}, nil)

	require.NoError(t, err)
	assert.Len(t, batch.Images, 1)
	assert.Len(t, batch.Failures, 1)

	result := s.Flush(context.Background())
	assert.Equal(t, 1, result.Images.Matched)
	assert.Contains(t, result.Output, "data:image/png;base64,")
}

func TestSessionUploadDiscardedAfterReset(t *testing.T) {
	s := newSession(t)
	assets := []images.Asset{{Name: "a.png", Data: smallPNG(t)}}

	_, err := s.Upload(context.Background(), assets, func(images.Progress) {
		require.NoError(t, s.ResetImages())
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindStaleResult))
	assert.Equal(t, 0, s.Images().Len())
}

func TestSessionPersistence(t *testing.T) {
	store := kvstore.NewMemoryStore()
	s := newSession(t, WithStore(store))

	require.NoError(t, s.SetVariable(variables.Variable{Name: "n", Value: "3", Type: variables.TypeNumber}))
	_, err := s.Upload(context.Background(), []images.Asset{{Name: "a.png", Data: smallPNG(t)}}, nil)
	require.NoError(t, err)

	restored := newSession(t, WithStore(store))
	v, ok := restored.Variables().Get("n")
	require.True(t, ok)
	assert.Equal(t, variables.TypeNumber, v.Type)
	_, ok = restored.Images().Lookup("a.png")
	assert.True(t, ok)

	require.NoError(t, restored.ResetImages())
	keys, err := store.Keys(ImagePrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, restored.RemoveVariable("n"))
	again := newSession(t, WithStore(store))
	assert.Equal(t, 0, again.Variables().Len())
}
