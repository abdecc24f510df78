package entity

import "fmt"

// BackendKind тип бэкенда захвата
type BackendKind string

const (
	BackendCamera    BackendKind = "camera"     // высокопроизводительная камера (gocv)
	BackendImageFeed BackendKind = "image_feed" // совместимый режим: кадры из загруженных изображений
)

// BackendStatus состояние выбора бэкенда
type BackendStatus string

const (
	BackendUnknown          BackendStatus = "unknown"
	BackendAvailable        BackendStatus = "available"
	BackendUnavailable      BackendStatus = "unavailable"
	BackendDegraded         BackendStatus = "degraded"          // работает, но часть возможностей отключена
	BackendPermissionDenied BackendStatus = "permission_denied" // терминально, нужна явная реакция пользователя
	BackendFailed           BackendStatus = "failed"            // терминально, фоллбэк тоже упал
)

// BackendState текущее состояние захвата
type BackendState struct {
	Status BackendStatus
	Kind   BackendKind // активный или последний пробованный бэкенд
	Reason string
}

func (s BackendState) String() string {
	if s.Reason == "" {
		return fmt.Sprintf("%s(%s)", s.Status, s.Kind)
	}
	return fmt.Sprintf("%s(%s): %s", s.Status, s.Kind, s.Reason)
}

// Terminal сообщает, что из состояния нет автоматического выхода.
func (s BackendState) Terminal() bool {
	return s.Status == BackendPermissionDenied || s.Status == BackendFailed
}

// Capability результат проверки наличия возможности, вычисляется один раз при старте
type Capability struct {
	Available bool
	Reason    string
}

// Available возможность присутствует
func Available() Capability { return Capability{Available: true} }

// Unavailable возможность отсутствует по указанной причине
func Unavailable(reason string) Capability { return Capability{Reason: reason} }

// Capabilities флаги активного бэкенда
type Capabilities struct {
	SupportsOCR   bool
	SupportsTorch bool
	SupportsZoom  bool
}
