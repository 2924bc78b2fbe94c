package components

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/scanner"
)

func scanOne(t *testing.T, text string) scanner.Descriptor {
	t.Helper()
	result := scanner.Scan(text)
	require.Len(t, result.Descriptors, 1)
	return result.Descriptors[0]
}

func TestRenderHTML(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name     string
		input    string
		contains []string
	}{
		{
			name:  "bar chart",
			input: "```chart\nbar\nQ1: 50\nQ2: 100\n```",
			contains: []string{
				`folio-chart-bar`,
				`<figcaption>Bar chart</figcaption>`,
				`style="width:50.0%"`,
				`style="width:100.0%"`,
			},
		},
		{
			name:     "pie chart",
			input:    "```chart\npie\nA: 1\nB: 3\n```",
			contains: []string{`(25%)`, `(75%)`},
		},
		{
			name:     "line chart",
			input:    "```chart\nline\nA: 1\nB: 3\n```",
			contains: []string{`<polyline`, `0.0,100.0 300.0,0.0`},
		},
		{
			name:     "timeline",
			input:    "```timeline\n2024-01: Start\n```",
			contains: []string{`<time>2024-01</time> Start`},
		},
		{
			name:     "progress",
			input:    "Done [progress:40:Build] so far",
			contains: []string{`value="40"`, `40% Build`},
		},
		{
			name:     "tasks",
			input:    "```tasks\n- [x] a\n- [ ] b\n```",
			contains: []string{`1/2 done (50%)`, `checked disabled> a`},
		},
		{
			name:     "alert",
			input:    "::: warning Heads up\nCareful <now>\n:::",
			contains: []string{`folio-alert-warning`, `<strong>Heads up</strong>`, `<p>Careful &lt;now&gt;</p>`},
		},
		{
			name:     "stats",
			input:    "```stats\nUsers | 10 | +5% | 👤\n```",
			contains: []string{`<span class="change up">+5%</span>`, `<span class="value">10</span>`},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := RenderHTML(ctx, scanOne(t, tc.input))
			require.NoError(t, err)
			for _, want := range tc.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestHTMLEscapesLabels(t *testing.T) {
	d := scanOne(t, "```chart\nbar\n<b>x</b>: 1\n```")

	out, err := RenderHTML(context.Background(), d)

	require.NoError(t, err)
	assert.NotContains(t, out, "<b>x</b>")
	assert.Contains(t, out, "&lt;b&gt;x&lt;/b&gt;")
}

func TestAlertWithoutTitle(t *testing.T) {
	d := scanOne(t, "::: tip\nbody\n:::")

	out, err := RenderHTML(context.Background(), d)

	require.NoError(t, err)
	assert.Contains(t, out, "<strong>Tip</strong>")
	assert.Equal(t, "TIP\nbody", Text(d))
}

func TestText(t *testing.T) {
	assert.Equal(t, "[████░░░░░░] 40% Build", Text(scanOne(t, "[progress:40:Build]")))
	assert.Equal(t, "[░░░░░░░░░░] 0%", Text(scanOne(t, "[progress:0]")))

	chart := Text(scanOne(t, "```chart\nbar\nA: 10\nBB: 5\n```"))
	assert.Equal(t, "Bar chart\nA  │"+repeat("█", 20)+" 10\nBB │"+repeat("█", 10)+" 5", chart)

	tasks := Text(scanOne(t, "```tasks\n- [x] a\n- [ ] b\n```"))
	assert.Equal(t, "Tasks 1/2 (50%)\n[x] a\n[ ] b", tasks)

	stats := Text(scanOne(t, "```stats\nUsers | 10 | +5% | 👤\n```"))
	assert.Equal(t, "👤 Users: 10 (+5%)", stats)

	timeline := Text(scanOne(t, "```timeline\n2024: Launch\n```"))
	assert.Equal(t, "• 2024  Launch", timeline)
}

func TestMarkdown(t *testing.T) {
	assert.Equal(t, "- [x] a\n- [ ] b", Markdown(scanOne(t, "```tasks\n- [x] a\n- [ ] b\n```")))
	assert.Equal(t, "> **Note**\n>\n> line one\n> line two",
		Markdown(scanOne(t, "::: info Note\nline one\nline two\n:::")))
	assert.Equal(t, "`[█████░░░░░] 50%`", Markdown(scanOne(t, "[progress:50]")))
	assert.Contains(t, Markdown(scanOne(t, "```chart\npie\nA: 1\n```")), "```text\nPie chart\n")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Warning", Title("warning"))
	assert.Equal(t, "Donut", Title("donut"))
}

func TestTitleConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				results[i] = Title("warning")
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "Warning", r)
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
