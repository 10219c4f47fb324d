package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"petbot/internal/conversation"
	"petbot/internal/eventbus"
	"petbot/internal/feeding"
	"petbot/internal/model"
	kit "petbot/internal/transport"
	logx "petbot/pkg/logx"
	"petbot/pkg/tgui"
)

// Store is the persistence the command handlers use.
type Store interface {
	CreateUser(ctx context.Context, telegramID int64, username string) (model.User, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)
	RegenerateAPIKey(ctx context.Context, userID string) (string, error)

	CreatePet(ctx context.Context, ownerID, name string) (model.Pet, error)
	PetByID(ctx context.Context, id string, withOwner bool) (model.Pet, error)
	PetsForUser(ctx context.Context, userID string) ([]model.Pet, error)
	PetsOwnedBy(ctx context.Context, userID string) ([]model.Pet, error)
	AddCarer(ctx context.Context, petID, userID string) error
	PetCarers(ctx context.Context, petID string) ([]model.User, error)

	SetConfig(ctx context.Context, scope model.Scope, key, ownerID string, value any) error
	DayStart(ctx context.Context, petID string) (model.DayStart, error)
	CurrentPet(ctx context.Context, userID string) (model.CurrentPet, error)

	AddFeeding(ctx context.Context, f model.Feeding) (model.Feeding, error)
	LastFeeding(ctx context.Context, petID string) (model.Feeding, error)
	ConsumptionAggregate(ctx context.Context, petID string, from, to time.Time) (float64, error)

	UpsertNotification(ctx context.Context, ownerID, keyword, message string) (model.Notification, error)
	NotificationByOwnerAndKeyword(ctx context.Context, ownerID, keyword string) (model.Notification, []model.User, error)
	Subscribe(ctx context.Context, notificationID, userID string) error
	CreateNotificationHistory(ctx context.Context, h model.NotificationHistory) error
	NotificationHistory(ctx context.Context, userID string, limit int) ([]model.NotificationHistory, error)
}

// Reminders schedules, inspects and cancels keyed reminder triggers.
type Reminders interface {
	feeding.Scheduler
	Next(ctx context.Context, key string) (time.Time, bool, error)
	Cancel(ctx context.Context, key string) error
}

// Conversations starts multi-step dialogs.
type Conversations interface {
	Begin(chatID, userID int64, name string, fn func(ctx context.Context, c *conversation.Conversation) error) error
}

// Deps wires the command handlers.
type Deps struct {
	Store         Store
	Sender        kit.Sender
	Conversations Conversations
	Reminders     Reminders
	// ReminderAfter is read per feeding so config reloads apply.
	ReminderAfter func() time.Duration
	Bus           eventbus.Bus
	Log           logx.Logger
}

type Handlers struct {
	Deps
	router *Router
}

func NewHandlers(d Deps, router *Router) *Handlers {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.ReminderAfter == nil {
		d.ReminderAfter = func() time.Duration { return 4 * time.Hour }
	}
	return &Handlers{Deps: d, router: router}
}

// Commands returns every bot command.
func (h *Handlers) Commands() []Command {
	return []Command{
		{Name: "start", Description: "boas-vindas", Handle: h.start},
		{Name: "ajuda", Aliases: []string{"help"}, Description: "lista os comandos", Handle: h.help},
		{Name: "cadastrar", Description: "cria seu cadastro e chave de API", Handle: h.signup},
		{Name: "gerar_chave", Description: "gera uma nova chave de API", Handle: h.regenerateKey},
		{Name: "novo_pet", Description: "cadastra um pet", Usage: "/novo_pet <nome>", Handle: h.newPet},
		{Name: "escolher_pet", Description: "escolhe o pet atual", Handle: h.choosePet},
		{Name: "cuidador", Description: "adiciona um cuidador a um pet", Usage: "/cuidador @usuario", Handle: h.addCarer},
		{Name: "inicio_dia", Description: "define o início do dia do pet", Usage: "/inicio_dia HH:MM [fuso]", Handle: h.setDayStart},
		{Name: "comida", Description: "registra uma refeição", Usage: "/comida <quantidade> [HH:MM]", Handle: h.addFood},
		{Name: "lembrete", Description: "mostra ou cancela o próximo lembrete do pet", Usage: "/lembrete [off]", Handle: h.reminder},
		{Name: "nova_notificacao", Description: "cria ou altera uma notificação", Usage: "/nova_notificacao <palavra> [mensagem]", Handle: h.newNotification},
		{Name: "assinar", Description: "assina a notificação de outro usuário", Usage: "/assinar @dono <palavra>", Handle: h.subscribe},
		{Name: "historico", Description: "lista as últimas mensagens enviadas a você", Handle: h.history},
		{Name: conversation.CancelCommand, Description: "cancela a operação atual", Handle: h.cancelIdle},
	}
}

func (h *Handlers) start(ctx context.Context, req *Request) error {
	return req.Reply(ctx, TextWelcome)
}

func (h *Handlers) help(ctx context.Context, req *Request) error {
	lines := []tgui.H{tgui.B("Comandos")}
	for _, c := range h.router.Commands() {
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		lines = append(lines, tgui.JoinH(" - ", tgui.Code(usage), tgui.Esc(c.Description)))
	}
	return req.ReplyHTML(ctx, tgui.JoinH("\n", lines...).String())
}

// cancelIdle only serves the menu entry: the conversation manager answers
// /cancelar before updates reach the router.
func (h *Handlers) cancelIdle(ctx context.Context, req *Request) error {
	return req.Reply(ctx, conversation.CancelledText)
}

func (h *Handlers) signup(ctx context.Context, req *Request) error {
	if _, err := h.Store.UserByTelegramID(ctx, req.FromID); err == nil {
		return req.Reply(ctx, TextAlreadySigned)
	} else if !errors.Is(err, model.ErrNotFound) {
		return err
	}
	u, err := h.Store.CreateUser(ctx, req.FromID, req.Username)
	if err != nil {
		return err
	}
	req.Log.Info("user signed up", logx.String("user", u.ID))
	return req.ReplyHTML(ctx, tgui.JoinH("\n",
		tgui.Esc("Cadastro concluído! Sua chave de API:"),
		tgui.Code(u.APIKey),
	).String())
}

// user loads the caller. ok is false after the caller was told to sign up.
func (h *Handlers) user(ctx context.Context, req *Request) (model.User, bool, error) {
	u, err := h.Store.UserByTelegramID(ctx, req.FromID)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, false, req.Reply(ctx, TextNotRegistered)
	}
	if err != nil {
		return model.User{}, false, err
	}
	return u, true, nil
}

// begin starts a conversation and tells the user when it could not.
func (h *Handlers) begin(ctx context.Context, req *Request, name string, fn func(ctx context.Context, s conversation.Session) error) error {
	err := h.Conversations.Begin(req.Chat.ChatID, req.FromID, name, func(ctx context.Context, c *conversation.Conversation) error {
		err := fn(ctx, c)
		if err != nil && ctx.Err() == nil && !errors.Is(err, conversation.ErrCancelled) {
			_, _ = c.Send(ctx, TextInternalError, &kit.SendOptions{RemoveKeyboard: true})
		}
		return err
	})
	if err != nil {
		req.Log.Warn("conversation not started", logx.Err(err))
		return req.Reply(ctx, TextNoConversation)
	}
	return nil
}

func (h *Handlers) regenerateKey(ctx context.Context, req *Request) error {
	u, ok, err := h.user(ctx, req)
	if !ok {
		return err
	}
	return h.begin(ctx, req, "gerar_chave", func(ctx context.Context, s conversation.Session) error {
		return h.confirmNewKey(ctx, s, u)
	})
}

func (h *Handlers) confirmNewKey(ctx context.Context, s conversation.Session, u model.User) error {
	choice, err := conversation.SelectOrCancel(ctx, s, conversation.SelectConfig[string]{
		Values:  []string{yes, no},
		Label:   func(v string) string { return v },
		Message: TextKeyConfirm,
	})
	if err != nil {
		return err
	}
	v, ok := choice.Value()
	if !ok {
		return nil
	}
	if v != yes {
		_, err := s.Send(ctx, TextKeyKept, nil)
		return err
	}
	key, err := h.Store.RegenerateAPIKey(ctx, u.ID)
	if err != nil {
		return err
	}
	_, err = s.Send(ctx, tgui.JoinH("\n", tgui.Esc("Nova chave de API:"), tgui.Code(key)).String(), &kit.SendOptions{ParseMode: "HTML"})
	return err
}

func (h *Handlers) newPet(ctx context.Context, req *Request) error {
	name := strings.TrimSpace(req.RawArgs)
	if name == "" {
		return req.Reply(ctx, TextUsageNewPet)
	}
	u, ok, err := h.user(ctx, req)
	if !ok {
		return err
	}
	pet, err := h.Store.CreatePet(ctx, u.ID, name)
	if err != nil {
		return err
	}
	if err := h.setCurrentPet(ctx, u, pet); err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("Pet %s cadastrado e selecionado.", pet.Name))
}

func (h *Handlers) setCurrentPet(ctx context.Context, u model.User, pet model.Pet) error {
	return h.Store.SetConfig(ctx, model.ScopeUser, model.KeyCurrentPet, u.ID, model.CurrentPet{ID: pet.ID, Name: pet.Name})
}

func (h *Handlers) choosePet(ctx context.Context, req *Request) error {
	u, ok, err := h.user(ctx, req)
	if !ok {
		return err
	}
	pets, err := h.Store.PetsForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(pets) == 0 {
		return req.Reply(ctx, TextNoPets)
	}
	return h.begin(ctx, req, "escolher_pet", func(ctx context.Context, s conversation.Session) error {
		return h.selectCurrentPet(ctx, s, u, pets)
	})
}

func (h *Handlers) selectCurrentPet(ctx context.Context, s conversation.Session, u model.User, pets []model.Pet) error {
	choice, err := conversation.SelectOrCancel(ctx, s, conversation.SelectConfig[model.Pet]{
		Values:  pets,
		Label:   petName,
		Message: TextChoosePet,
		Mode:    conversation.ModeInline,
	})
	if err != nil {
		return err
	}
	pet, ok := choice.Value()
	if !ok {
		return nil
	}
	if err := h.setCurrentPet(ctx, u, pet); err != nil {
		return err
	}
	_, err = s.Send(ctx, "Pet atual: "+pet.Name, nil)
	return err
}

func petName(p model.Pet) string { return p.Name }

func (h *Handlers) addCarer(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return req.Reply(ctx, TextUsageCarer)
	}
	username := strings.TrimPrefix(req.Args[0], "@")
	if username == "" {
		return req.Reply(ctx, TextUsageCarer)
	}
	u, ok, err := h.user(ctx, req)
	if !ok {
		return err
	}
	carer, err := h.Store.UserByUsername(ctx, username)
	if errors.Is(err, model.ErrNotFound) {
		return req.Reply(ctx, fmt.Sprintf(TextUserNotFoundFmt, username))
	}
	if err != nil {
		return err
	}
	if carer.ID == u.ID {
		return req.Reply(ctx, TextCarerIsOwner)
	}
	pets, err := h.Store.PetsOwnedBy(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(pets) == 0 {
		return req.Reply(ctx, TextNoOwnedPets)
	}
	return h.begin(ctx, req, "cuidador", func(ctx context.Context, s conversation.Session) error {
		return h.selectCarerPet(ctx, s, carer, pets)
	})
}

func (h *Handlers) selectCarerPet(ctx context.Context, s conversation.Session, carer model.User, pets []model.Pet) error {
	choice, err := conversation.SelectOrCancel(ctx, s, conversation.SelectConfig[model.Pet]{
		Values:  pets,
		Label:   petName,
		Message: fmt.Sprintf("Para qual pet @%s será cuidador?", carer.Username),
		Mode:    conversation.ModeReply,
	})
	if err != nil {
		return err
	}
	pet, ok := choice.Value()
	if !ok {
		return nil
	}
	if err := h.Store.AddCarer(ctx, pet.ID, carer.ID); err != nil {
		return err
	}
	if _, err := s.Send(ctx, fmt.Sprintf("@%s agora cuida de %s.", carer.Username, pet.Name), &kit.SendOptions{RemoveKeyboard: true}); err != nil {
		return err
	}
	if _, err := h.Sender.SendText(ctx, kit.ChatTarget{ChatID: carer.TelegramID}, fmt.Sprintf("Você agora é cuidador de %s.", pet.Name), nil); err != nil {
		h.Log.Warn("carer not told", logx.String("user", carer.ID), logx.Err(err))
	}
	return nil
}

// currentPet resolves the caller's current pet. ok is false after the caller
// was told what is missing.
func (h *Handlers) currentPet(ctx context.Context, req *Request) (model.User, model.Pet, bool, error) {
	u, ok, err := h.user(ctx, req)
	if !ok {
		return u, model.Pet{}, false, err
	}
	cp, err := h.Store.CurrentPet(ctx, u.ID)
	if errors.Is(err, model.ErrPreconditionMissing) {
		return u, model.Pet{}, false, req.Reply(ctx, TextNoCurrentPet)
	}
	if err != nil {
		return u, model.Pet{}, false, err
	}
	pet, err := h.Store.PetByID(ctx, cp.ID, true)
	if errors.Is(err, model.ErrNotFound) {
		return u, model.Pet{}, false, req.Reply(ctx, TextNoCurrentPet)
	}
	if err != nil {
		return u, model.Pet{}, false, err
	}
	return u, pet, true, nil
}

func (h *Handlers) setDayStart(ctx context.Context, req *Request) error {
	if len(req.Args) < 1 || len(req.Args) > 2 {
		return req.Reply(ctx, TextUsageDayStart)
	}
	zone := ""
	if len(req.Args) == 2 {
		zone = req.Args[1]
	}
	ds, err := feeding.NewDayStart(req.Args[0], zone)
	if err != nil {
		return req.Reply(ctx, TextUsageDayStart)
	}
	_, pet, ok, err := h.currentPet(ctx, req)
	if !ok {
		return err
	}
	if err := h.Store.SetConfig(ctx, model.ScopePet, model.KeyDayStart, pet.ID, ds); err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("Início do dia de %s: %s (%s).", pet.Name, ds.Time, ds.Timezone))
}

// newNotification saves keyword's message. Without a message on the command
// line the message is asked for in a conversation.
func (h *Handlers) newNotification(ctx context.Context, req *Request) error {
	keyword, message, _ := strings.Cut(strings.TrimSpace(req.RawArgs), " ")
	keyword, message = strings.TrimSpace(keyword), strings.TrimSpace(message)
	if keyword == "" {
		return req.Reply(ctx, TextUsageNewNotif)
	}
	u, ok, err := h.user(ctx, req)
	if !ok {
		return err
	}
	if message == "" {
		return h.begin(ctx, req, "nova_notificacao", func(ctx context.Context, s conversation.Session) error {
			return h.askNotificationMessage(ctx, s, u, keyword)
		})
	}
	n, err := h.Store.UpsertNotification(ctx, u.ID, keyword, message)
	if err != nil {
		return err
	}
	return req.ReplyHTML(ctx, notificationSaved(n))
}

func (h *Handlers) askNotificationMessage(ctx context.Context, s conversation.Session, u model.User, keyword string) error {
	if _, err := s.Send(ctx, fmt.Sprintf(TextAskNotifFmt, keyword), nil); err != nil {
		return err
	}
	message, err := conversation.WaitText(ctx, s)
	if err != nil {
		return err
	}
	if message == "" || strings.HasPrefix(message, "/") {
		_, err := s.Send(ctx, TextUsageNewNotif, nil)
		return err
	}
	n, err := h.Store.UpsertNotification(ctx, u.ID, keyword, message)
	if err != nil {
		return err
	}
	_, err = s.Send(ctx, notificationSaved(n), &kit.SendOptions{ParseMode: "HTML"})
	return err
}

func notificationSaved(n model.Notification) string {
	return tgui.JoinH(" ",
		tgui.Esc("Notificação"), tgui.B(n.Keyword), tgui.Esc("salva. Dispare com POST /api/notify e a palavra"), tgui.Code(n.Keyword),
	).String()
}

func (h *Handlers) subscribe(ctx context.Context, req *Request) error {
	if len(req.Args) != 2 {
		return req.Reply(ctx, TextUsageSubscribe)
	}
	ownerName := strings.TrimPrefix(req.Args[0], "@")
	keyword := req.Args[1]
	u, ok, err := h.user(ctx, req)
	if !ok {
		return err
	}
	owner, err := h.Store.UserByUsername(ctx, ownerName)
	if errors.Is(err, model.ErrNotFound) {
		return req.Reply(ctx, fmt.Sprintf(TextUserNotFoundFmt, ownerName))
	}
	if err != nil {
		return err
	}
	n, _, err := h.Store.NotificationByOwnerAndKeyword(ctx, owner.ID, keyword)
	if errors.Is(err, model.ErrNotFound) {
		return req.Reply(ctx, TextNotifNotFound)
	}
	if err != nil {
		return err
	}
	if err := h.Store.Subscribe(ctx, n.ID, u.ID); err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("Inscrito em %s de @%s.", n.Keyword, owner.Username))
}
