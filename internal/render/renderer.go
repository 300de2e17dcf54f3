// Package render draws a snapshot into a still frame for the debug
// endpoint. Drawing uses one reusable gg context guarded by a mutex.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fogleman/gg"

	"ink-blade/internal/game"
)

// Sizes used for drawing. Snapshots do not carry radii.
const (
	PlayerRadius = 22.0
	EnemyRadius  = 20.0
	BossScale    = 1.6
	gridSpacing  = 200.0
)

var (
	paperColor  = color.RGBA{242, 236, 224, 255}
	gridColor   = color.RGBA{220, 212, 196, 255}
	boundsColor = color.RGBA{90, 80, 70, 255}
	playerColor = color.RGBA{20, 20, 28, 255}
	barBack     = color.RGBA{51, 51, 51, 200}
	healthColor = color.RGBA{196, 40, 52, 255}
	inkColor    = color.RGBA{40, 90, 160, 255}
	goldColor   = color.RGBA{214, 170, 60, 255}

	tagColors = map[string]color.RGBA{
		"ink":   {40, 40, 52, 255},
		"crim":  {196, 40, 52, 255},
		"gold":  goldColor,
		"trail": {120, 120, 140, 255},
	}
)

// Config sizes the output frame.
type Config struct {
	Width    int
	Height   int
	FontPath string
}

// DefaultConfig returns a 960x540 frame and the first system font found.
func DefaultConfig() Config {
	return Config{Width: 960, Height: 540, FontPath: findFontPath()}
}

// Renderer turns snapshots into images.
type Renderer struct {
	cfg Config

	mu sync.Mutex
	dc *gg.Context

	frames uint64 // atomic
}

func NewRenderer(cfg Config) *Renderer {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		def := DefaultConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	return &Renderer{cfg: cfg, dc: gg.NewContext(cfg.Width, cfg.Height)}
}

// Render draws snap and returns a copy of the frame.
func (r *Renderer) Render(snap *game.Snapshot) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	src := r.dc.Image()
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, image.Point{}, draw.Src)
	return out
}

// EncodePNG draws snap and writes it to w as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *game.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

// Frames is the number of frames drawn so far.
func (r *Renderer) Frames() uint64 {
	return atomic.LoadUint64(&r.frames)
}

func (r *Renderer) draw(snap *game.Snapshot) {
	dc := r.dc
	w, h := float64(r.cfg.Width), float64(r.cfg.Height)

	dc.SetColor(paperColor)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	// Camera follows the player; shake jitters it by a sequence-derived
	// offset so the same snapshot always draws the same frame.
	shake := snap.Feedback.Shake
	seq := float64(snap.Sequence)
	camX := snap.Player.Pos.X - w/2 + math.Sin(seq*12.9898)*shake*0.5
	camY := snap.Player.Pos.Y - h/2 + math.Cos(seq*78.233)*shake*0.5

	dc.Push()
	dc.Translate(-camX, -camY)
	r.drawArena(dc, snap, camX, camY, w, h)
	r.drawTelegraphs(dc, snap)
	r.drawEnemies(dc, snap)
	r.drawPlayer(dc, &snap.Player)
	r.drawBursts(dc, snap)
	dc.Pop()

	r.drawHUD(dc, snap)

	if snap.Feedback.Flash > 0 {
		dc.SetColor(color.NRGBA{255, 255, 255, uint8(math.Min(snap.Feedback.Flash, 1) * 110)})
		dc.DrawRectangle(0, 0, w, h)
		dc.Fill()
	}
	if snap.Mode != game.ModeRunning.String() {
		dc.SetColor(color.RGBA{0, 0, 0, 90})
		dc.DrawRectangle(0, 0, w, h)
		dc.Fill()
	}

	atomic.AddUint64(&r.frames, 1)
}

func (r *Renderer) drawArena(dc *gg.Context, snap *game.Snapshot, camX, camY, w, h float64) {
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := math.Floor(camX/gridSpacing) * gridSpacing; x <= camX+w; x += gridSpacing {
		dc.DrawLine(x, camY, x, camY+h)
		dc.Stroke()
	}
	for y := math.Floor(camY/gridSpacing) * gridSpacing; y <= camY+h; y += gridSpacing {
		dc.DrawLine(camX, y, camX+w, y)
		dc.Stroke()
	}

	dc.SetColor(boundsColor)
	dc.SetLineWidth(4)
	dc.DrawRectangle(0, 0, snap.World.Width, snap.World.Height)
	dc.Stroke()
}

func (r *Renderer) drawTelegraphs(dc *gg.Context, snap *game.Snapshot) {
	dc.SetLineWidth(3)
	dc.SetColor(color.NRGBA{196, 40, 52, 160})
	for _, t := range snap.Feedback.Telegraphs {
		dc.DrawCircle(t.Pos.X, t.Pos.Y, EnemyRadius+14)
		dc.Stroke()
	}
}

func (r *Renderer) drawEnemies(dc *gg.Context, snap *game.Snapshot) {
	for i := range snap.Enemies {
		e := &snap.Enemies[i]
		radius := EnemyRadius
		if e.Kind == game.KindBoss.String() {
			radius *= BossScale
		}

		body := tagColor(e.Tag)
		if e.HitFlash {
			body = color.RGBA{255, 255, 255, 255}
		}
		dc.SetColor(body)
		dc.DrawCircle(e.Pos.X, e.Pos.Y, radius)
		dc.Fill()

		if e.Elite || e.Phase > 1 {
			dc.SetColor(goldColor)
			dc.SetLineWidth(3)
			dc.DrawCircle(e.Pos.X, e.Pos.Y, radius+5)
			dc.Stroke()
		}
		if e.Attacking {
			dc.SetColor(healthColor)
			dc.SetLineWidth(3)
			sweep := 2 * math.Pi * (1 - math.Min(e.Windup/0.28, 1))
			dc.DrawArc(e.Pos.X, e.Pos.Y, radius+9, -math.Pi/2, -math.Pi/2+sweep)
			dc.Stroke()
		}

		drawBar(dc, e.Pos.X-radius, e.Pos.Y-radius-12, radius*2, 4, e.Health/e.HealthMax, healthColor)
	}
}

func (r *Renderer) drawPlayer(dc *gg.Context, p *game.PlayerView) {
	alpha := uint8(255)
	if p.Invulnerable {
		alpha = 150
	}

	if p.Guarding {
		dc.SetColor(color.NRGBA{40, 90, 160, 180})
		dc.SetLineWidth(5)
		angle := math.Atan2(p.Facing.Y, p.Facing.X)
		dc.DrawArc(p.Pos.X, p.Pos.Y, PlayerRadius+8, angle-1.1, angle+1.1)
		dc.Stroke()
	}
	if p.ParryOpen {
		dc.SetColor(goldColor)
		dc.SetLineWidth(3)
		dc.DrawCircle(p.Pos.X, p.Pos.Y, PlayerRadius+14)
		dc.Stroke()
	}

	dc.SetColor(color.NRGBA{playerColor.R, playerColor.G, playerColor.B, alpha})
	dc.DrawCircle(p.Pos.X, p.Pos.Y, PlayerRadius)
	dc.Fill()

	dc.SetLineWidth(4)
	dc.DrawLine(p.Pos.X, p.Pos.Y, p.Pos.X+p.Facing.X*(PlayerRadius+16), p.Pos.Y+p.Facing.Y*(PlayerRadius+16))
	dc.Stroke()
}

func (r *Renderer) drawBursts(dc *gg.Context, snap *game.Snapshot) {
	dc.SetLineWidth(2)
	for _, b := range snap.Feedback.Bursts {
		c := tagColor(b.Tag)
		dc.SetColor(color.NRGBA{c.R, c.G, c.B, 170})
		dc.DrawCircle(b.Pos.X, b.Pos.Y, 12*b.Power)
		dc.Stroke()
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.Snapshot) {
	p := &snap.Player
	drawBar(dc, 20, 20, 220, 12, p.Health/p.HealthMax, healthColor)
	resource := inkColor
	if p.SpecialReady {
		resource = goldColor
	}
	drawBar(dc, 20, 38, 220, 8, p.Resource/p.ResourceMax, resource)

	if r.cfg.FontPath == "" {
		return
	}
	if err := dc.LoadFontFace(r.cfg.FontPath, 18); err == nil {
		dc.SetColor(playerColor)
		dc.DrawString(fmt.Sprintf("SCORE %d  WAVE %d  KILLS %d", snap.Score, snap.Wave, snap.Kills), 20, 72)
		dc.DrawStringAnchored(fmt.Sprintf("BEST %d", snap.HighScore), float64(r.cfg.Width)-20, 28, 1, 0.5)
		if snap.Combo.Streak > 1 {
			dc.SetColor(healthColor)
			dc.DrawStringAnchored(fmt.Sprintf("%s  x%d", snap.Combo.Rank, snap.Combo.Streak), float64(r.cfg.Width)-20, 56, 1, 0.5)
		}
	}
}

func drawBar(dc *gg.Context, x, y, w, h, frac float64, fill color.Color) {
	if math.IsNaN(frac) {
		frac = 0
	}
	frac = math.Max(0, math.Min(1, frac))
	dc.SetColor(barBack)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()
	dc.SetColor(fill)
	dc.DrawRectangle(x, y, w*frac, h)
	dc.Fill()
}

func tagColor(tag string) color.RGBA {
	if c, ok := tagColors[tag]; ok {
		return c
	}
	return tagColors["ink"]
}

func findFontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if matches, _ := filepath.Glob("*.ttf"); len(matches) > 0 {
		return matches[0]
	}
	return ""
}
