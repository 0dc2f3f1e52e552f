package fonts

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/flopp/go-findfont"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/sync/singleflight"
)

// Options configures a [Resolver].
type Options struct {
	// OverridePath is tried before anything else.
	OverridePath string

	// Names are font file names (for example "NotoSansCJK-Regular.ttc")
	// searched for in the system font directories.
	Names []string

	// Candidates defaults to [DefaultCandidates].
	Candidates Candidates

	// Platform selects the candidate list. Defaults to [HostPlatform].
	Platform string

	// ReadFile defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	Logger *log.Logger
}

// Source describes which font a resolver settled on.
type Source struct {
	Path    string // empty for the built-in face
	Builtin bool
}

func (s Source) String() string {
	if s.Builtin {
		return "built-in (Go Regular)"
	}
	return s.Path
}

// Resolver picks a font once and hands out faces at any size. Faces are
// cached per size and safe for concurrent use.
type Resolver struct {
	opts   Options
	logger *log.Logger

	loadOnce sync.Once
	source   Source
	font     loadedFont

	group singleflight.Group
	mu    sync.RWMutex
	faces map[float64]font.Face
}

// NewResolver creates a resolver. Nothing is read from disk until the first
// call to [Resolver.Resolve] or [Resolver.Source].
func NewResolver(opts Options) *Resolver {
	if opts.Candidates == nil {
		opts.Candidates = DefaultCandidates()
	}
	if opts.Platform == "" {
		opts.Platform = HostPlatform()
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		opts:   opts,
		logger: logger,
		faces:  make(map[float64]font.Face),
	}
}

// Resolve returns a face at sizePt points. It never fails: when no system
// font can be loaded the built-in face is returned. A non-positive size
// selects [DefaultSize].
func (r *Resolver) Resolve(sizePt float64) font.Face {
	if sizePt <= 0 {
		sizePt = DefaultSize
	}

	r.mu.RLock()
	face, ok := r.faces[sizePt]
	r.mu.RUnlock()
	if ok {
		return face
	}

	v, _, _ := r.group.Do(strconv.FormatFloat(sizePt, 'f', -1, 64), func() (any, error) {
		r.mu.RLock()
		cached, ok := r.faces[sizePt]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		r.load()
		f, err := r.font.face(sizePt)
		if err != nil {
			r.logger.Warn("font face failed, using built-in", "source", r.source, "size", sizePt, "error", err)
			f = Builtin(sizePt)
		}
		f = newSyncFace(f)

		r.mu.Lock()
		r.faces[sizePt] = f
		r.mu.Unlock()
		return f, nil
	})
	return v.(font.Face)
}

// Source reports the font the resolver uses, loading it if needed.
func (r *Resolver) Source() Source {
	r.load()
	return r.source
}

// Paths returns the ordered list of font files the resolver tries.
func (r *Resolver) Paths() []string {
	var paths []string
	if r.opts.OverridePath != "" {
		paths = append(paths, r.opts.OverridePath)
	}
	for _, name := range r.opts.Names {
		if p, err := findfont.Find(name); err == nil {
			paths = append(paths, p)
		}
	}
	return append(paths, r.opts.Candidates.For(r.opts.Platform)...)
}

func (r *Resolver) load() {
	r.loadOnce.Do(func() {
		for _, path := range r.Paths() {
			data, err := r.opts.ReadFile(path)
			if err != nil {
				if path == r.opts.OverridePath {
					r.logger.Warn("font override unreadable", "path", path, "error", err)
				} else {
					r.logger.Debug("font candidate missing", "path", path)
				}
				continue
			}
			f, err := parseFont(data)
			if err != nil {
				r.logger.Warn("font candidate unloadable", "path", path, "error", err)
				continue
			}
			r.source = Source{Path: path}
			r.font = f
			r.logger.Debug("resolved font", "path", path, "platform", r.opts.Platform)
			return
		}

		r.logger.Warn("no system font found, CJK text may render as placeholders", "platform", r.opts.Platform)
		r.source = Source{Builtin: true}
		r.font = builtinFont()
	})
}

// Builtin returns the face compiled into the binary at sizePt points.
func Builtin(sizePt float64) font.Face {
	f, err := builtinFont().face(sizePt)
	if err != nil {
		return basicfont.Face7x13
	}
	return f
}

// List returns every font file found in the system font directories.
func List() []string {
	return findfont.List()
}

type loadedFont interface {
	face(sizePt float64) (font.Face, error)
}

// sfntFont is a TTF, OTF or the first member of a TTC/OTC collection.
type sfntFont struct{ f *opentype.Font }

func (s sfntFont) face(sizePt float64) (font.Face, error) {
	return opentype.NewFace(s.f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

type truetypeFont struct{ f *truetype.Font }

func (t truetypeFont) face(sizePt float64) (font.Face, error) {
	return truetype.NewFace(t.f, &truetype.Options{Size: sizePt, DPI: 72}), nil
}

type bitmapFont struct{}

func (bitmapFont) face(float64) (font.Face, error) {
	return basicfont.Face7x13, nil
}

func parseFont(data []byte) (loadedFont, error) {
	coll, err := opentype.ParseCollection(data)
	if err != nil {
		return nil, err
	}
	if coll.NumFonts() == 0 {
		return nil, fmt.Errorf("font collection is empty")
	}
	f, err := coll.Font(0)
	if err != nil {
		return nil, err
	}
	return sfntFont{f: f}, nil
}

func builtinFont() loadedFont {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return bitmapFont{}
	}
	return truetypeFont{f: f}
}
