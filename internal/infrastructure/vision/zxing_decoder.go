package vision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

type zxingReader struct {
	symbology entity.Symbology
	reader    gozxing.Reader
}

// ZXingDecoder декодер штрихкодов на чистом Go (gozxing). Работает без OpenCV.
// Ридеры gozxing хранят состояние между вызовами, поэтому Decode сериализован.
type ZXingDecoder struct {
	mu      sync.Mutex
	readers []zxingReader
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewZXingDecoder создаёт декодер для перечисленных форматов. Пустой список включает все поддерживаемые.
func NewZXingDecoder(symbologies ...entity.Symbology) *ZXingDecoder {
	all := []zxingReader{
		{entity.SymbologyQR, qrcode.NewQRCodeReader()},
		{entity.SymbologyDataMatrix, datamatrix.NewDataMatrixReader()},
		{entity.SymbologyCode128, oned.NewCode128Reader()},
		{entity.SymbologyCode39, oned.NewCode39Reader()},
		{entity.SymbologyCode93, oned.NewCode93Reader()},
		{entity.SymbologyEAN13, oned.NewEAN13Reader()},
		{entity.SymbologyEAN8, oned.NewEAN8Reader()},
		{entity.SymbologyUPCA, oned.NewUPCAReader()},
		{entity.SymbologyUPCE, oned.NewUPCEReader()},
		{entity.SymbologyITF, oned.NewITFReader()},
		{entity.SymbologyCodabar, oned.NewCodaBarReader()},
	}

	d := &ZXingDecoder{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
	if len(symbologies) == 0 {
		d.readers = all
		return d
	}
	enabled := make(map[entity.Symbology]bool, len(symbologies))
	for _, s := range symbologies {
		enabled[s] = true
	}
	for _, r := range all {
		if enabled[r.symbology] {
			d.readers = append(d.readers, r)
		}
	}
	return d
}

// Decode прогоняет кадр через все включённые ридеры и возвращает найденные символы.
func (d *ZXingDecoder) Decode(ctx context.Context, frame entity.Frame) ([]entity.Detection, error) {
	if frame.Image == nil {
		return nil, errors.New("empty frame")
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("binarize frame: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var out []entity.Detection
	for _, r := range d.readers {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := r.reader.Decode(bmp, d.hints)
		r.reader.Reset()
		if err != nil {
			// NotFound и ошибки формата означают, что символа этого типа на кадре нет
			continue
		}
		out = append(out, entity.Detection{
			Value:        res.GetText(),
			Symbology:    r.symbology,
			Bounds:       boundsOf(res.GetResultPoints()),
			Source:       entity.SourceSymbol,
			RecognizedAt: frame.CapturedAt,
		})
	}
	return out, nil
}

// boundsOf строит описывающий прямоугольник по опорным точкам результата
func boundsOf(points []gozxing.ResultPoint) *entity.Rect {
	if len(points) == 0 {
		return nil
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		if p == nil {
			continue
		}
		minX = math.Min(minX, p.GetX())
		minY = math.Min(minY, p.GetY())
		maxX = math.Max(maxX, p.GetX())
		maxY = math.Max(maxY, p.GetY())
	}
	if math.IsInf(minX, 1) {
		return nil
	}
	return &entity.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// ChainDecoder объединяет результаты нескольких декодеров. Ошибка одного не мешает остальным.
type ChainDecoder []port.SymbolDecoder

// Decode возвращает детекции всех звеньев. Ошибка возвращается, только если упали все.
func (c ChainDecoder) Decode(ctx context.Context, frame entity.Frame) ([]entity.Detection, error) {
	var (
		out  []entity.Detection
		errs []error
	)
	for _, d := range c {
		ds, err := d.Decode(ctx, frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, ds...)
	}
	if len(errs) == len(c) && len(c) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

var (
	_ port.SymbolDecoder = (*ZXingDecoder)(nil)
	_ port.SymbolDecoder = ChainDecoder(nil)
)
