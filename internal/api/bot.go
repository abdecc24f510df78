package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "asset-scan/internal/application"
	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
	"asset-scan/internal/scanner"
)

const (
	msgStart = `👋 Привет! Я помогаю заполнять и принимать баллоны партиями.

1️⃣ /location <код склада> — выберите локацию
2️⃣ /status empty|full — выберите статус, сканирование начнётся сразу
3️⃣ Присылайте фото штрихкодов, QR-кодов или накладных
4️⃣ /submit — отправьте партию

/help — все команды`

	msgHelp = `📋 Команды:
/location <код> — выбрать локацию
/status empty|full — выбрать статус и начать сканирование
/scan — возобновить сканирование
/list — текущая партия
/remove <код> — убрать код из партии
/clear — очистить партию
/confirm <код> — добавить актив, закреплённый за клиентом
/reject <код> — отказаться от такого актива
/submit — отправить партию
/cancel — сбросить сессию

💡 Снимайте при хорошем освещении, код должен быть в центре кадра.`

	msgAskLocation     = "📍 Укажите локацию: /location <код склада>"
	msgAskStatus       = "🏷 Выберите статус: /status empty или /status full"
	msgLocationSet     = "📍 Локация: %s\n" + msgAskStatus
	msgScanStarted     = "📸 Сканирование: локация %s, статус %s. Присылайте фото."
	msgNotScanning     = "⛔ Сканирование не запущено. " + msgAskLocation
	msgCancelled       = "❌ Сессия сброшена. " + msgAskLocation
	msgCleared         = "🧹 Партия очищена."
	msgRemoved         = "🗑 %s удалён из партии."
	msgConfirmed       = "✅ %s добавлен."
	msgRejected        = "↩️ %s пропущен."
	msgEmptyList       = "📭 Партия пуста."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgScannerStopped  = "🛑 Сканирование остановлено: %v\nЗапустите заново: /scan"
	msgCodeRequired    = "Укажите код: /%s <код>"
)

// Bot Telegram-интерфейс сценария сканирования. Он же доставляет сигналы пользователю.
type Bot struct {
	api      *tgbotapi.BotAPI
	sessions *app.SessionService
	scanning *app.ScanningService
	log      logrus.FieldLogger
}

// NewBot авторизует бота. Сервисы подключаются через Bind.
func NewBot(token string, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{api: api, log: log}, nil
}

// Bind подключает сервисы. Нужен, потому что бот одновременно получатель сигналов сервисов.
func (b *Bot) Bind(sessions *app.SessionService, scanning *app.ScanningService) {
	b.sessions = sessions
	b.scanning = scanning
	scanning.OnFailure = func(ownerID int64, err error) {
		b.sendMessage(ownerID, fmt.Sprintf(msgScannerStopped, describeFailure(err)))
	}
}

// Notify отправляет сигнал в чат владельца (в личных чатах ID чата совпадает с ID пользователя)
func (b *Bot) Notify(ctx context.Context, fb entity.Feedback) {
	prefix := map[entity.FeedbackKind]string{
		entity.FeedbackAdmitted:     "✅ ",
		entity.FeedbackDuplicate:    "🔁 ",
		entity.FeedbackConfirmation: "❔ ",
		entity.FeedbackError:        "⚠️ ",
	}[fb.Kind]
	b.sendMessage(fb.OwnerID, prefix+fb.Message)
}

// Run запускает основной цикл обработки сообщений
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	// Текст без команды трактуем как ответ на текущий шаг
	b.handleText(ctx, msg)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	owner := msg.From.ID
	arg := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		if _, err := b.sessions.Reset(ctx, owner); err != nil {
			b.replyError(msg.Chat.ID, err)
			return
		}
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "location":
		b.selectLocation(ctx, msg.Chat.ID, owner, arg)

	case "status":
		b.selectStatus(ctx, msg.Chat.ID, owner, arg)

	case "scan":
		b.startScan(ctx, msg.Chat.ID, owner)

	case "list":
		b.sendList(ctx, msg.Chat.ID, owner)

	case "remove":
		b.withCode(msg, arg, func(code string) (string, error) {
			_, err := b.sessions.RemoveItem(ctx, owner, code)
			return fmt.Sprintf(msgRemoved, code), err
		})

	case "confirm":
		b.withCode(msg, arg, func(code string) (string, error) {
			_, err := b.sessions.Confirm(ctx, owner, code)
			return fmt.Sprintf(msgConfirmed, code), err
		})

	case "reject":
		b.withCode(msg, arg, func(code string) (string, error) {
			_, err := b.sessions.Reject(ctx, owner, code)
			return fmt.Sprintf(msgRejected, code), err
		})

	case "clear":
		if _, err := b.sessions.Clear(ctx, owner); err != nil {
			b.replyError(msg.Chat.ID, err)
			return
		}
		b.sendMessage(msg.Chat.ID, msgCleared)

	case "submit":
		summary, err := b.sessions.Submit(ctx, owner)
		if err != nil {
			b.replyError(msg.Chat.ID, err)
			return
		}
		b.sendMessage(msg.Chat.ID, formatSummary(summary))

	case "cancel":
		if _, err := b.sessions.Reset(ctx, owner); err != nil {
			b.replyError(msg.Chat.ID, err)
			return
		}
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	session, err := b.sessions.Get(ctx, msg.From.ID)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch session.Step {
	case entity.StepSelectLocation:
		b.selectLocation(ctx, msg.Chat.ID, msg.From.ID, text)
	case entity.StepSelectStatus:
		b.selectStatus(ctx, msg.Chat.ID, msg.From.ID, text)
	default:
		b.sendMessage(msg.Chat.ID, "📸 Пришлите фото кода или /help")
	}
}

func (b *Bot) selectLocation(ctx context.Context, chatID, owner int64, location string) {
	if _, err := b.sessions.SelectLocation(ctx, owner, location); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf(msgLocationSet, location))
}

// selectStatus выбирает статус и сразу запускает сканирование
func (b *Bot) selectStatus(ctx context.Context, chatID, owner int64, arg string) {
	status, ok := parseStatus(arg)
	if !ok {
		b.sendMessage(chatID, msgAskStatus)
		return
	}
	if _, err := b.sessions.SelectStatus(ctx, owner, status); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.startScan(ctx, chatID, owner)
}

func (b *Bot) startScan(ctx context.Context, chatID, owner int64) {
	session, err := b.sessions.StartScan(ctx, owner)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf(msgScanStarted, session.LocationID, session.StatusTarget))
}

// handlePhoto отдаёт фото конвейеру распознавания; результат придёт через Notify
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(photo.FileID)
	if err != nil {
		b.log.WithError(err).Warn("download photo")
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	if err := b.scanning.PushFrame(ctx, msg.From.ID, imageData); err != nil {
		if errors.Is(err, app.ErrNotScanning) {
			b.sendMessage(msg.Chat.ID, msgNotScanning)
			return
		}
		b.log.WithError(err).WithField("owner", msg.From.ID).Warn("push frame")
		b.sendMessage(msg.Chat.ID, msgProcessingError)
	}
}

func (b *Bot) sendList(ctx context.Context, chatID, owner int64) {
	view, err := b.sessions.View(ctx, owner)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.sendMessage(chatID, formatList(view))
}

func (b *Bot) withCode(msg *tgbotapi.Message, code string, fn func(code string) (string, error)) {
	if code == "" {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgCodeRequired, msg.Command()))
		return
	}
	reply, err := fn(strings.ToUpper(code))
	if err != nil {
		// коды в сессии могут быть в исходном регистре
		reply, err = fn(code)
	}
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.sendMessage(msg.Chat.ID, reply)
}

// replyError переводит ошибки сценария в подсказки
func (b *Bot) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, app.ErrLocationRequired):
		b.sendMessage(chatID, msgAskLocation)
	case errors.Is(err, app.ErrStatusRequired):
		b.sendMessage(chatID, msgAskStatus)
	case errors.Is(err, app.ErrNotScanning):
		b.sendMessage(chatID, msgNotScanning)
	case errors.Is(err, app.ErrItemNotFound):
		b.sendMessage(chatID, "🔍 Такого кода нет в партии.")
	case errors.Is(err, app.ErrNoPendingConfirmation):
		b.sendMessage(chatID, "🔍 Этот код не ждёт подтверждения.")
	default:
		b.log.WithError(err).Error("bot request failed")
		b.sendMessage(chatID, "⚠️ Ошибка: "+err.Error())
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	fileURL := file.Link(b.api.Token)

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Warn("send message")
	}
}

// parseStatus понимает и английские, и русские названия статусов
func parseStatus(s string) (entity.StatusTarget, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "пустой", "пустые", "empty":
		return entity.StatusEmpty, true
	case "полный", "полные", "full":
		return entity.StatusFull, true
	}
	return entity.ParseStatusTarget(s)
}

func formatList(v app.SessionView) string {
	if len(v.Items) == 0 && len(v.Pending) == 0 {
		return msgEmptyList
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 Партия (%d), локация %s, статус %s:\n", len(v.Items), v.LocationID, v.StatusTarget)
	for i, ev := range v.Items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, ev.Code)
	}
	if len(v.Pending) > 0 {
		sb.WriteString("❔ Ждут подтверждения: ")
		sb.WriteString(strings.Join(v.Pending, ", "))
		sb.WriteString("\n")
	}
	if v.Duplicates > 0 {
		fmt.Fprintf(&sb, "🔁 Повторов отклонено: %d\n", v.Duplicates)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSummary(s entity.SubmitSummary) string {
	if len(s.Failed) == 0 {
		return fmt.Sprintf("✅ Отправлено: %d. Сессия завершена.\n%s", s.Added, msgAskLocation)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "⚠️ Отправлено: %d, ошибок: %d\n", s.Added, len(s.Failed))
	for _, f := range s.Failed {
		fmt.Fprintf(&sb, "• %s: %s\n", f.Code, f.Reason)
	}
	sb.WriteString("Неотправленные коды остались в партии, повторите /submit")
	return sb.String()
}

func describeFailure(err error) string {
	var fatal *scanner.FatalError
	switch {
	case errors.Is(err, scanner.ErrPermissionDenied):
		return "нет доступа к камере"
	case errors.As(err, &fatal):
		return fmt.Sprintf("резервный источник %s тоже упал", fatal.Backend)
	default:
		return err.Error()
	}
}

var _ port.Feedback = (*Bot)(nil)
