package entity

// DefaultTolerance запас вокруг области сканирования (доля ширины/высоты).
const DefaultTolerance = 0.1

// Rect прямоугольник детекции: в пикселях или в нормализованных координатах 0–1
type Rect struct {
	X      float64 // координата X левого верхнего угла
	Y      float64 // координата Y левого верхнего угла
	Width  float64 // ширина
	Height float64 // высота
}

// Center возвращает координаты центра прямоугольника
func (r Rect) Center() (x, y float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Right правая граница
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom нижняя граница
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Size размер видоискателя, в пространство которого переводятся нормализованные координаты
type Size struct {
	Width  float64
	Height float64
}

// RegionOfInterest область видоискателя, в которой детекции считаются валидными.
// Area задаётся в пикселях пространства View.
type RegionOfInterest struct {
	Area      Rect
	View      Size
	Tolerance float64 // доля ширины/высоты Area, по умолчанию DefaultTolerance
}

// CenteredROI строит область заданного размера, отцентрованную по горизонтали.
func CenteredROI(view Size, width, height, top float64) RegionOfInterest {
	return RegionOfInterest{
		Area:      Rect{X: (view.Width - width) / 2, Y: top, Width: width, Height: height},
		View:      view,
		Tolerance: DefaultTolerance,
	}
}

// Accept проверяет, что центр детекции лежит внутри области с учётом допуска.
// Детекции без геометрии принимаются всегда: не все бэкенды её сообщают.
func (roi RegionOfInterest) Accept(bounds *Rect) bool {
	if bounds == nil {
		return true
	}

	cx, cy := bounds.Center()
	if cx <= 1 && cy <= 1 {
		// Нормализованные координаты переводим в пиксели видоискателя.
		cx *= roi.View.Width
		cy *= roi.View.Height
	}

	tolX := roi.Area.Width * roi.Tolerance
	tolY := roi.Area.Height * roi.Tolerance

	return cx >= roi.Area.X-tolX &&
		cx <= roi.Area.Right()+tolX &&
		cy >= roi.Area.Y-tolY &&
		cy <= roi.Area.Bottom()+tolY
}
