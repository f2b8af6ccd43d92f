package screen

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"

	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
)

// X11Capturer enumerates outputs through RandR and reads pixels from the
// root window. Without RandR the whole root window is reported as a single
// display.
type X11Capturer struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	randr  bool
}

// NewX11 connects to the X server named by $DISPLAY.
func NewX11() (*X11Capturer, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "connect to X server")
	}
	c := &X11Capturer{conn: conn, screen: xproto.Setup(conn).DefaultScreen(conn)}
	if err := randr.Init(conn); err != nil {
		slog.Warn("randr unavailable, treating root window as one display", "error", err)
	} else {
		c.randr = true
	}
	return c, nil
}

func (c *X11Capturer) Displays(ctx context.Context) ([]Display, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.randr {
		return []Display{c.rootDisplay()}, nil
	}

	res, err := randr.GetScreenResourcesCurrent(c.conn, c.screen.Root).Reply()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDisplayEnumFailed, "query randr resources")
	}

	displays := make([]Display, 0, len(res.Outputs))
	for _, out := range res.Outputs {
		info, err := randr.GetOutputInfo(c.conn, out, res.ConfigTimestamp).Reply()
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.CodeDisplayEnumFailed, "query output %d", out)
		}
		if info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}
		crtc, err := randr.GetCrtcInfo(c.conn, info.Crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.CodeDisplayEnumFailed, "query crtc of %s", info.Name)
		}
		if crtc.Width == 0 || crtc.Height == 0 {
			continue
		}
		name := string(info.Name)
		displays = append(displays, Display{
			ID:   name,
			Name: name,
			Bounds: Rect{
				X:      int(crtc.X),
				Y:      int(crtc.Y),
				Width:  int(crtc.Width),
				Height: int(crtc.Height),
			},
		})
	}

	if len(displays) == 0 {
		return []Display{c.rootDisplay()}, nil
	}
	return displays, nil
}

func (c *X11Capturer) rootDisplay() Display {
	return Display{
		ID:   "root",
		Name: "root",
		Bounds: Rect{
			Width:  int(c.screen.WidthInPixels),
			Height: int(c.screen.HeightInPixels),
		},
	}
}

// Capture reads r from the root window. Only 24 and 32 bit TrueColor
// visuals are supported.
func (c *X11Capturer) Capture(ctx context.Context, r image.Rectangle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Empty() {
		return nil, apperr.Newf(apperr.CodeCaptureFailed, "empty capture rectangle %v", r)
	}

	reply, err := xproto.GetImage(c.conn, xproto.ImageFormatZPixmap, xproto.Drawable(c.screen.Root),
		int16(r.Min.X), int16(r.Min.Y), uint16(r.Dx()), uint16(r.Dy()), 0xffffffff).Reply()
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.CodeCaptureFailed, "get image %v", r)
	}
	if reply.Depth != 24 && reply.Depth != 32 {
		return nil, apperr.Newf(apperr.CodeCaptureFailed, "unsupported depth %d", reply.Depth)
	}
	return bgraToRGBA(reply.Data, r.Dx(), r.Dy())
}

// bgraToRGBA converts a ZPixmap in little-endian BGRX layout.
func bgraToRGBA(data []byte, w, h int) (*image.RGBA, error) {
	if len(data) < w*h*4 {
		return nil, apperr.New(apperr.CodeCaptureFailed,
			fmt.Sprintf("short image data: got %d bytes for %dx%d", len(data), w, h))
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		p := i * 4
		img.Pix[p+0] = data[p+2]
		img.Pix[p+1] = data[p+1]
		img.Pix[p+2] = data[p+0]
		img.Pix[p+3] = 0xff
	}
	return img, nil
}

func (c *X11Capturer) Close() error {
	c.conn.Close()
	return nil
}
