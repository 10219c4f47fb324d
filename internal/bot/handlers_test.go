package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petbot/internal/conversation"
	"petbot/internal/feeding"
	"petbot/internal/model"
	kit "petbot/internal/transport"
)

const (
	ownerTG = int64(1)
	carerTG = int64(2)
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func (hs *harness) signup(t *testing.T, tg int64, username string) model.User {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, hs.h.signup(ctx, hs.req(tg, username, "", time.Now())))
	u, err := hs.store.UserByTelegramID(ctx, tg)
	require.NoError(t, err)
	return u
}

// ownerWithPet registers ana (owner of Rex, dayStart 06:00 São Paulo) and bia (carer).
func (hs *harness) ownerWithPet(t *testing.T) (owner, carer model.User, pet model.Pet) {
	t.Helper()
	ctx := context.Background()
	owner = hs.signup(t, ownerTG, "ana")
	carer = hs.signup(t, carerTG, "bia")

	require.NoError(t, hs.h.newPet(ctx, hs.req(ownerTG, "ana", "Rex", time.Now())))
	cp, err := hs.store.CurrentPet(ctx, owner.ID)
	require.NoError(t, err)
	pet, err = hs.store.PetByID(ctx, cp.ID, true)
	require.NoError(t, err)
	require.NoError(t, hs.store.AddCarer(ctx, pet.ID, carer.ID))
	require.NoError(t, hs.h.setCurrentPet(ctx, carer, pet))

	require.NoError(t, hs.h.setDayStart(ctx, hs.req(ownerTG, "ana", "06:00 America/Sao_Paulo", time.Now())))
	return owner, carer, pet
}

func TestSignup(t *testing.T) {
	hs := newHarness(t)
	u := hs.signup(t, ownerTG, "ana")

	assert.Contains(t, hs.client.last(t, ownerTG), u.APIKey)
	assert.Equal(t, "ana", u.Username)

	require.NoError(t, hs.h.signup(context.Background(), hs.req(ownerTG, "ana", "", time.Now())))
	assert.Equal(t, TextAlreadySigned, hs.client.last(t, ownerTG))
}

func TestCommandsRequireSignup(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	for _, fn := range []HandlerFunc{hs.h.newPet, hs.h.choosePet, hs.h.addFood, hs.h.regenerateKey} {
		require.NoError(t, fn(ctx, hs.req(ownerTG, "ana", "Rex", time.Now())))
		assert.Equal(t, TextNotRegistered, hs.client.last(t, ownerTG))
	}
}

func TestAddFoodRequiresPetAndDayStart(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	hs.signup(t, ownerTG, "ana")

	require.NoError(t, hs.h.addFood(ctx, hs.req(ownerTG, "ana", "120", time.Now())))
	assert.Equal(t, TextNoCurrentPet, hs.client.last(t, ownerTG))

	require.NoError(t, hs.h.newPet(ctx, hs.req(ownerTG, "ana", "Rex", time.Now())))
	require.NoError(t, hs.h.addFood(ctx, hs.req(ownerTG, "ana", "120", time.Now())))
	assert.Equal(t, TextNoDayStart, hs.client.last(t, ownerTG))
	assert.Empty(t, hs.rem.calls)
}

func TestAddFoodSchedulesReminderAndTellsCarers(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	_, _, pet := hs.ownerWithPet(t)
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, saoPaulo(t))

	require.NoError(t, hs.h.addFood(ctx, hs.req(ownerTG, "ana", "120g", at)))
	assert.Equal(t, "Registrado 120 g para Rex às 12:00. Total do dia: 120 g.", hs.client.last(t, ownerTG))
	assert.Equal(t, "@ana registrou 120 g de comida para Rex às 12:00.", hs.client.last(t, carerTG))

	require.Len(t, hs.rem.calls, 1)
	call := hs.rem.calls[0]
	assert.Equal(t, feeding.ReminderKey(pet.ID), call.key)
	assert.Equal(t, feeding.Event, call.event)
	assert.True(t, call.at.Equal(at.Add(4*time.Hour)), "reminder at %s", call.at)
	assert.Equal(t, feeding.Payload{PetID: pet.ID}, call.payload)

	// A backdated feeding is not the latest: the reminder stays put.
	require.NoError(t, hs.h.addFood(ctx, hs.req(carerTG, "bia", "50 07:00", at)))
	assert.Equal(t, "Registrado 50 g para Rex às 07:00. Total do dia: 170 g.", hs.client.last(t, carerTG))
	assert.Equal(t, "@bia registrou 50 g de comida para Rex às 07:00.", hs.client.last(t, ownerTG))
	assert.Len(t, hs.rem.calls, 1)
}

func TestAddFoodRejectsBadQuantity(t *testing.T) {
	hs := newHarness(t)
	hs.ownerWithPet(t)

	require.NoError(t, hs.h.addFood(context.Background(), hs.req(ownerTG, "ana", "muito", time.Now())))
	assert.Equal(t, feeding.ErrInvalidQuantity.Error(), hs.client.last(t, ownerTG))
	assert.Empty(t, hs.rem.calls)
}

func TestSetDayStart(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	_, _, pet := hs.ownerWithPet(t)

	ds, err := hs.store.DayStart(ctx, pet.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DayStart{Time: "06:00", Timezone: "America/Sao_Paulo"}, ds)

	require.NoError(t, hs.h.setDayStart(ctx, hs.req(ownerTG, "ana", "7:30", time.Now())))
	ds, err = hs.store.DayStart(ctx, pet.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DayStart{Time: "07:30", Timezone: feeding.DefaultTimezone}, ds)

	for _, args := range []string{"", "25:00", "06:00 Mars/Olympus", "06:00 a b"} {
		require.NoError(t, hs.h.setDayStart(ctx, hs.req(ownerTG, "ana", args, time.Now())))
		assert.Equal(t, TextUsageDayStart, hs.client.last(t, ownerTG), "args %q", args)
	}
}

func TestChoosePetStartsConversation(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	owner, _, pet := hs.ownerWithPet(t)
	other, err := hs.store.CreatePet(ctx, owner.ID, "Mia")
	require.NoError(t, err)

	require.NoError(t, hs.h.choosePet(ctx, hs.req(ownerTG, "ana", "", time.Now())))
	require.Len(t, hs.convs.begun, 1)
	assert.Equal(t, begun{chatID: ownerTG, userID: ownerTG, name: "escolher_pet"}, hs.convs.begun[0])

	s := &scriptSession{client: hs.client, chatID: ownerTG, updates: []kit.Update{
		{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb1", ChatID: ownerTG, FromID: ownerTG, Data: "values-1"}},
	}}
	require.NoError(t, hs.h.selectCurrentPet(ctx, s, owner, []model.Pet{pet, other}))
	cp, err := hs.store.CurrentPet(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, cp.ID)
	assert.Equal(t, "Pet atual: Mia", hs.client.last(t, ownerTG))

	// Cancel keeps the current pet.
	s = &scriptSession{client: hs.client, chatID: ownerTG, updates: []kit.Update{
		{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb2", ChatID: ownerTG, FromID: ownerTG, Data: conversation.CancelLabel}},
	}}
	require.NoError(t, hs.h.selectCurrentPet(ctx, s, owner, []model.Pet{pet, other}))
	cp, err = hs.store.CurrentPet(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, cp.ID)
	assert.Equal(t, conversation.CancelledText, hs.client.last(t, ownerTG))
}

func TestChoosePetWithoutPets(t *testing.T) {
	hs := newHarness(t)
	hs.signup(t, ownerTG, "ana")
	require.NoError(t, hs.h.choosePet(context.Background(), hs.req(ownerTG, "ana", "", time.Now())))
	assert.Equal(t, TextNoPets, hs.client.last(t, ownerTG))
	assert.Empty(t, hs.convs.begun)
}

func TestBeginFailureIsReported(t *testing.T) {
	hs := newHarness(t)
	hs.signup(t, ownerTG, "ana")
	hs.convs.err = errors.New("not running")

	require.NoError(t, hs.h.regenerateKey(context.Background(), hs.req(ownerTG, "ana", "", time.Now())))
	assert.Equal(t, TextNoConversation, hs.client.last(t, ownerTG))
}

func TestAddCarerFlow(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	owner := hs.signup(t, ownerTG, "ana")
	carer := hs.signup(t, carerTG, "bia")
	pet, err := hs.store.CreatePet(ctx, owner.ID, "Rex")
	require.NoError(t, err)

	require.NoError(t, hs.h.addCarer(ctx, hs.req(ownerTG, "ana", "@ninguem", time.Now())))
	assert.Contains(t, hs.client.last(t, ownerTG), "@ninguem")

	require.NoError(t, hs.h.addCarer(ctx, hs.req(ownerTG, "ana", "@ana", time.Now())))
	assert.Equal(t, TextCarerIsOwner, hs.client.last(t, ownerTG))

	require.NoError(t, hs.h.addCarer(ctx, hs.req(ownerTG, "ana", "@bia", time.Now())))
	require.Len(t, hs.convs.begun, 1)

	s := &scriptSession{client: hs.client, chatID: ownerTG, updates: []kit.Update{
		{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: ownerTG, FromID: ownerTG, Text: "Outro"}},
		{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: ownerTG, FromID: ownerTG, Text: "Rex"}},
	}}
	require.NoError(t, hs.h.selectCarerPet(ctx, s, carer, []model.Pet{pet}))

	carers, err := hs.store.PetCarers(ctx, pet.ID)
	require.NoError(t, err)
	require.Len(t, carers, 1)
	assert.Equal(t, carer.ID, carers[0].ID)

	ownerMsgs := hs.client.to(ownerTG)
	assert.Contains(t, ownerMsgs, conversation.ChoosePrompt)
	assert.Equal(t, "@bia agora cuida de Rex.", ownerMsgs[len(ownerMsgs)-1])
	assert.Equal(t, "Você agora é cuidador de Rex.", hs.client.last(t, carerTG))
}

func TestRegenerateKey(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	u := hs.signup(t, ownerTG, "ana")

	s := &scriptSession{client: hs.client, chatID: ownerTG, updates: []kit.Update{
		{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "no", Data: "values-1"}},
	}}
	require.NoError(t, hs.h.confirmNewKey(ctx, s, u))
	assert.Equal(t, TextKeyKept, hs.client.last(t, ownerTG))
	same, err := hs.store.UserByTelegramID(ctx, ownerTG)
	require.NoError(t, err)
	assert.Equal(t, u.APIKey, same.APIKey)

	s = &scriptSession{client: hs.client, chatID: ownerTG, updates: []kit.Update{
		{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "yes", Data: "values-0"}},
	}}
	require.NoError(t, hs.h.confirmNewKey(ctx, s, u))
	fresh, err := hs.store.UserByTelegramID(ctx, ownerTG)
	require.NoError(t, err)
	assert.NotEqual(t, u.APIKey, fresh.APIKey)
	assert.Contains(t, hs.client.last(t, ownerTG), fresh.APIKey)
}

func TestNotificationAndSubscribe(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	owner := hs.signup(t, ownerTG, "ana")
	sub := hs.signup(t, carerTG, "bia")

	require.NoError(t, hs.h.newNotification(ctx, hs.req(ownerTG, "ana", "  ", time.Now())))
	assert.Equal(t, TextUsageNewNotif, hs.client.last(t, ownerTG))

	require.NoError(t, hs.h.newNotification(ctx, hs.req(ownerTG, "ana", "porta A porta de {{quem}} abriu", time.Now())))
	n, subs, err := hs.store.NotificationByOwnerAndKeyword(ctx, owner.ID, "porta")
	require.NoError(t, err)
	assert.Equal(t, "A porta de {{quem}} abriu", n.Message)
	assert.Empty(t, subs)

	require.NoError(t, hs.h.subscribe(ctx, hs.req(carerTG, "bia", "@ana janela", time.Now())))
	assert.Equal(t, TextNotifNotFound, hs.client.last(t, carerTG))

	require.NoError(t, hs.h.subscribe(ctx, hs.req(carerTG, "bia", "@ana porta", time.Now())))
	assert.Equal(t, "Inscrito em porta de @ana.", hs.client.last(t, carerTG))
	_, subs, err = hs.store.NotificationByOwnerAndKeyword(ctx, owner.ID, "porta")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)
}

func TestNewNotificationAsksForMessage(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	owner := hs.signup(t, ownerTG, "ana")

	require.NoError(t, hs.h.newNotification(ctx, hs.req(ownerTG, "ana", "porta", time.Now())))
	require.Len(t, hs.convs.begun, 1)
	assert.Equal(t, "nova_notificacao", hs.convs.begun[0].name)

	s := &scriptSession{client: hs.client, chatID: ownerTG, updates: []kit.Update{
		{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "stray", Data: "values-0"}},
		{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: ownerTG, FromID: ownerTG, Text: "  A porta abriu "}},
	}}
	require.NoError(t, hs.h.askNotificationMessage(ctx, s, owner, "porta"))
	assert.Equal(t, []string{"stray"}, hs.client.answered)
	assert.Contains(t, hs.client.last(t, ownerTG), "<b>porta</b>")
	n, _, err := hs.store.NotificationByOwnerAndKeyword(ctx, owner.ID, "porta")
	require.NoError(t, err)
	assert.Equal(t, "A porta abriu", n.Message)

	s = &scriptSession{client: hs.client, chatID: ownerTG, updates: []kit.Update{
		{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: ownerTG, FromID: ownerTG, Text: "/comida 10"}},
	}}
	require.NoError(t, hs.h.askNotificationMessage(ctx, s, owner, "janela"))
	assert.Equal(t, TextUsageNewNotif, hs.client.last(t, ownerTG))
	_, _, err = hs.store.NotificationByOwnerAndKeyword(ctx, owner.ID, "janela")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReminderShowAndCancel(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	_, _, pet := hs.ownerWithPet(t)
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, saoPaulo(t))

	require.NoError(t, hs.h.reminder(ctx, hs.req(ownerTG, "ana", "", at)))
	assert.Equal(t, "Nenhum lembrete agendado para Rex.", hs.client.last(t, ownerTG))

	require.NoError(t, hs.h.addFood(ctx, hs.req(ownerTG, "ana", "120g", at)))
	require.NoError(t, hs.h.reminder(ctx, hs.req(carerTG, "bia", "", at)))
	assert.Equal(t, "Próximo lembrete de Rex: 10/03 16:00 (America/Sao_Paulo).", hs.client.last(t, carerTG))

	require.NoError(t, hs.h.reminder(ctx, hs.req(ownerTG, "ana", "amanhã", at)))
	assert.Equal(t, TextUsageReminder, hs.client.last(t, ownerTG))

	require.NoError(t, hs.h.reminder(ctx, hs.req(ownerTG, "ana", "OFF", at)))
	assert.Equal(t, "Lembrete de Rex cancelado.", hs.client.last(t, ownerTG))
	_, ok, err := hs.rem.Next(ctx, feeding.ReminderKey(pet.ID))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, hs.h.reminder(ctx, hs.req(ownerTG, "ana", "", at)))
	assert.Equal(t, "Nenhum lembrete agendado para Rex.", hs.client.last(t, ownerTG))
}

func TestHistoryListsDeliveries(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	hs.ownerWithPet(t)

	require.NoError(t, hs.h.history(ctx, hs.req(carerTG, "bia", "", time.Now())))
	assert.Equal(t, TextNoHistory, hs.client.last(t, carerTG))

	require.NoError(t, hs.h.addFood(ctx, hs.req(ownerTG, "ana", "120g", time.Now())))
	require.NoError(t, hs.h.history(ctx, hs.req(carerTG, "bia", "", time.Now())))
	got := hs.client.last(t, carerTG)
	assert.Contains(t, got, "<b>Últimas mensagens</b>")
	assert.Contains(t, got, " - pet Rex")

	require.NoError(t, hs.h.history(ctx, hs.req(ownerTG, "ana", "", time.Now())))
	assert.Equal(t, TextNoHistory, hs.client.last(t, ownerTG))
}

func TestHelpListsCommands(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.h.help(context.Background(), hs.req(ownerTG, "ana", "", time.Now())))
	got := hs.client.last(t, ownerTG)
	assert.Contains(t, got, "<b>Comandos</b>")
	assert.Contains(t, got, "<code>/comida &lt;quantidade&gt; [HH:MM]</code> - registra uma refeição")
	assert.Contains(t, got, "<code>/cadastrar</code>")
}
