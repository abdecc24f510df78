package entity

import (
	"image"
	"time"
)

// Symbology стандарт кодирования штрихкода
type Symbology string

const (
	SymbologyUnknown    Symbology = "unknown"
	SymbologyQR         Symbology = "qr"
	SymbologyEAN13      Symbology = "ean-13"
	SymbologyEAN8       Symbology = "ean-8"
	SymbologyUPCA       Symbology = "upc-a"
	SymbologyUPCE       Symbology = "upc-e"
	SymbologyCode128    Symbology = "code-128"
	SymbologyCode39     Symbology = "code-39"
	SymbologyCode93     Symbology = "code-93"
	SymbologyCodabar    Symbology = "codabar"
	SymbologyITF        Symbology = "itf"
	SymbologyDataMatrix Symbology = "data-matrix"
	SymbologyPDF417     Symbology = "pdf-417"
	SymbologyAztec      Symbology = "aztec"
	SymbologyText       Symbology = "text" // распознанный текст (OCR)
)

// DefaultSymbologies набор форматов, включённый по умолчанию.
func DefaultSymbologies() []Symbology {
	return []Symbology{
		SymbologyQR, SymbologyEAN13, SymbologyEAN8, SymbologyUPCA, SymbologyUPCE,
		SymbologyCode128, SymbologyCode39, SymbologyCode93, SymbologyCodabar,
		SymbologyITF, SymbologyDataMatrix, SymbologyPDF417, SymbologyAztec,
	}
}

// Source путь распознавания, которым получена детекция
type Source string

const (
	SourceSymbol     Source = "symbol"
	SourceTextRegion Source = "text"
)

// Frame один кадр камеры. После обработки адаптерами не хранится.
type Frame struct {
	Seq        uint64
	Image      image.Image
	CapturedAt time.Time
}

// Detection результат адаптера для одного кадра.
type Detection struct {
	Value        string
	Symbology    Symbology
	Bounds       *Rect // nil, если бэкенд не сообщает геометрию
	Source       Source
	RecognizedAt time.Time
}

// ScanEvent проверенное и дедуплицированное распознавание. Не изменяется после создания.
type ScanEvent struct {
	Code         string    `json:"code"`
	RecognizedAt time.Time `json:"recognized_at"`
	Source       Source    `json:"source"`
}

// RecognizedAtMs время распознавания в миллисекундах Unix.
func (e ScanEvent) RecognizedAtMs() int64 {
	return e.RecognizedAt.UnixMilli()
}
