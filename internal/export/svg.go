package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
)

// WrapSVG embeds a PNG capture in an SVG envelope sized to its pixel
// dimensions. Consumers get a scalable document whose raster payload is the
// same capture the PNG path produces.
func WrapSVG(pngBytes []byte) ([]byte, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("decode png header: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(pngBytes)

	var buf bytes.Buffer
	fmt.Fprintf(&buf,
		`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d" viewBox="0 0 %d %d">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
	fmt.Fprintf(&buf,
		`<image width="%d" height="%d" xlink:href="data:image/png;base64,%s"/>`,
		cfg.Width, cfg.Height, encoded)
	buf.WriteString(`</svg>`)
	return buf.Bytes(), nil
}
