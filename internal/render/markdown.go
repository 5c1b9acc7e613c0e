package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// builtinStyles are resolved by glamour by name rather than by file path
var builtinStyles = map[string]bool{
	"dark":        true,
	"light":       true,
	"dracula":     true,
	"tokyo-night": true,
	"pink":        true,
	"notty":       true,
	"ascii":       true,
}

// rendererPool reuses renderers per option set.
// glamour.TermRenderer is not safe for concurrent Render calls, so renderers
// are checked out rather than shared.
type rendererPool struct {
	mu    sync.RWMutex
	pools map[string]*sync.Pool
}

var globalPool = &rendererPool{
	pools: make(map[string]*sync.Pool),
}

func cacheKey(opts Options) string {
	return fmt.Sprintf("%s:%d:%t:%t:%t:%t",
		opts.Style,
		opts.Width,
		opts.EnableEmoji,
		opts.PreserveNewLines,
		opts.TableWrap,
		opts.InlineTableLinks,
	)
}

func (p *rendererPool) getPool(opts Options) *sync.Pool {
	key := cacheKey(opts)

	p.mu.RLock()
	if pool, ok := p.pools[key]; ok {
		p.mu.RUnlock()
		return pool
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok := p.pools[key]; ok {
		return pool
	}

	pool := &sync.Pool{
		New: func() interface{} {
			renderer, err := createRenderer(opts)
			if err != nil {
				return nil
			}
			return renderer
		},
	}
	p.pools[key] = pool
	return pool
}

func (p *rendererPool) get(opts Options) (*glamour.TermRenderer, error) {
	renderer := p.getPool(opts).Get()
	if renderer == nil {
		// New failed; surface the error
		return createRenderer(opts)
	}
	return renderer.(*glamour.TermRenderer), nil
}

func (p *rendererPool) put(opts Options, renderer *glamour.TermRenderer) {
	if renderer == nil {
		return
	}
	p.getPool(opts).Put(renderer)
}

func createRenderer(opts Options) (*glamour.TermRenderer, error) {
	rendererOpts := []glamour.TermRendererOption{
		glamour.WithWordWrap(opts.Width),
		glamour.WithTableWrap(opts.TableWrap),
		glamour.WithInlineTableLinks(opts.InlineTableLinks),
	}

	if builtinStyles[opts.Style] {
		rendererOpts = append(rendererOpts, glamour.WithStandardStyle(opts.Style))
	} else {
		rendererOpts = append(rendererOpts, glamour.WithStylePath(opts.Style))
	}

	if opts.EnableEmoji {
		rendererOpts = append(rendererOpts, glamour.WithEmoji())
	}

	if opts.PreserveNewLines {
		rendererOpts = append(rendererOpts, glamour.WithPreservedNewLines())
	}

	return glamour.NewTermRenderer(rendererOpts...)
}

// Markdown renders markdown content for terminal display. The content is
// sanitised first so replies cannot smuggle terminal control sequences.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	out, err := renderer.Render(Sanitize(content))
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}

// Reply renders an assistant reply: markdown when enabled, otherwise the
// sanitised text. Markdown failures fall back to the plain text.
func Reply(content string, markdown bool, opts Options) string {
	if !markdown {
		return Sanitize(content)
	}
	out, err := Markdown(content, opts)
	if err != nil {
		return Sanitize(content)
	}
	return out
}

// ClearCache clears the renderer pools (useful for testing).
func ClearCache() {
	globalPool.mu.Lock()
	globalPool.pools = make(map[string]*sync.Pool)
	globalPool.mu.Unlock()
}

// CacheSize returns the number of unique pool configurations.
func CacheSize() int {
	globalPool.mu.RLock()
	defer globalPool.mu.RUnlock()
	return len(globalPool.pools)
}
