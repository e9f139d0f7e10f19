package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"Gift-Price-Telegram-bot/internal/pricing"
)

const (
	cardWidth  = 800
	cardHeight = 450
)

var titleCaser = cases.Title(language.Und)

// CardRenderer собирает PNG-карточку с ценой подарка.
// Шрифт проверяется при старте; отсутствие файла — ошибка конструктора,
// без тихого отката на дефолт.
type CardRenderer struct {
	fontPath string
}

func NewCardRenderer(fontPath string) (*CardRenderer, error) {
	probe := gg.NewContext(1, 1)
	if err := probe.LoadFontFace(fontPath, 12); err != nil {
		return nil, fmt.Errorf("card font %s: %w", fontPath, err)
	}
	return &CardRenderer{fontPath: fontPath}, nil
}

// Render рисует карточку: градиентный фон, название, флор и средняя цена,
// список площадок и время снимка
func (r *CardRenderer) Render(price pricing.Price) ([]byte, error) {
	dc := gg.NewContext(cardWidth, cardHeight)

	grad := gg.NewLinearGradient(0, 0, 0, cardHeight)
	grad.AddColorStop(0, color.RGBA{R: 46, G: 66, B: 134, A: 255})
	grad.AddColorStop(1, color.RGBA{R: 22, G: 27, B: 58, A: 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, cardWidth, cardHeight)
	dc.Fill()

	if err := dc.LoadFontFace(r.fontPath, 44); err != nil {
		return nil, err
	}
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(titleCaser.String(price.Name), cardWidth/2, 85, 0.5, 0.5)

	if err := dc.LoadFontFace(r.fontPath, 64); err != nil {
		return nil, err
	}
	dc.SetRGB(0.45, 0.83, 1)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f TON", price.FloorTON), cardWidth/2, 225, 0.5, 0.5)

	if err := dc.LoadFontFace(r.fontPath, 26); err != nil {
		return nil, err
	}
	dc.SetRGB(0.75, 0.78, 0.85)
	dc.DrawStringAnchored(fmt.Sprintf("средняя: %.2f TON", price.AvgTON), cardWidth/2, 295, 0.5, 0.5)
	dc.DrawStringAnchored("площадки: "+joinMarkets(price.Markets), cardWidth/2, 340, 0.5, 0.5)

	if err := dc.LoadFontFace(r.fontPath, 20); err != nil {
		return nil, err
	}
	dc.SetRGB(0.5, 0.52, 0.6)
	dc.DrawStringAnchored(price.FetchedAt.Format("02.01.2006 15:04 MST"), cardWidth/2, cardHeight-30, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func joinMarkets(markets []string) string {
	if len(markets) == 0 {
		return "—"
	}
	return strings.Join(markets, ", ")
}
