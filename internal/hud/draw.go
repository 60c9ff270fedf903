package hud

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// draw renders one frame into holder. A failed lock means the surface is
// going away under us; the frame is dropped and the next one retries.
func (r *Renderer) draw(holder SurfaceHolder) {
	canvas, err := holder.LockCanvas()
	if err != nil {
		r.log.Debugf("lock canvas failed: %v", err)
		r.skipped.Add(1)
		return
	}
	if canvas == nil {
		r.skipped.Add(1)
		return
	}

	// Clear the canvas.
	draw.Draw(canvas, canvas.Bounds(), image.Transparent, image.Point{}, draw.Src)

	center := *r.center.Load()
	speed := *r.speedText.Load()
	drawCentered(canvas, r.res.SpeedFace, r.res.SpeedColor, speed, center)

	below := center.Add(image.Point{Y: r.res.SpeedFace.Metrics().Height.Ceil()})
	drawCentered(canvas, r.res.LabelFace, r.res.LabelColor, r.res.UnitLabel, below)

	if err := holder.UnlockCanvasAndPost(canvas); err != nil {
		r.log.Debugf("unlock canvas failed: %v", err)
		r.skipped.Add(1)
		return
	}
	r.posted.Add(1)
}

// drawCentered draws text with its baseline at dot.Y, centered on dot.X.
func drawCentered(dst draw.Image, face font.Face, c color.Color, text string, dot image.Point) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{X: fixed.I(dot.X) - width/2, Y: fixed.I(dot.Y)}
	d.DrawString(text)
}
