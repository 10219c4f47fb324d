package bot

// User-facing messages.
const (
	TextUnknownCommand = "Comando desconhecido. Tente /ajuda"
	TextBusy           = "Estou ocupado agora, tente novamente em instantes."
	TextInternalError  = "Algo deu errado. Tente novamente mais tarde."

	TextWelcome       = "Olá! Eu ajudo a cuidar da alimentação do seu pet. Use /cadastrar para começar e /ajuda para ver os comandos."
	TextNotRegistered = "Você precisa se cadastrar primeiro com /cadastrar."
	TextAlreadySigned = "Você já está cadastrado."
	TextNoCurrentPet  = "Nenhum pet selecionado. Use /novo_pet <nome> ou /escolher_pet."
	TextNoDayStart    = "Configure o início do dia do pet com /inicio_dia HH:MM [fuso]."
	TextNoPets        = "Você ainda não tem pets. Use /novo_pet <nome>."
	TextNoOwnedPets   = "Você não é dono de nenhum pet. Use /novo_pet <nome>."

	TextKeyConfirm = "Gerar uma nova chave de API? A chave atual deixará de funcionar."
	TextKeyKept    = "Chave mantida."
	TextChoosePet  = "Escolha o pet:"

	TextUsageNewPet     = "Uso: /novo_pet <nome>"
	TextUsageCarer      = "Uso: /cuidador @usuario"
	TextUsageDayStart   = "Uso: /inicio_dia HH:MM [fuso]. Exemplo: /inicio_dia 06:00 America/Sao_Paulo"
	TextUsageNewNotif   = "Uso: /nova_notificacao <palavra> [mensagem]"
	TextAskNotifFmt     = "Qual é a mensagem da notificação %s? Use {{nome}} para variáveis."
	TextUsageReminder   = "Uso: /lembrete [off]"
	TextNoHistory       = "Nenhuma mensagem enviada a você ainda."
	TextUsageSubscribe  = "Uso: /assinar @dono <palavra>"
	TextNotifNotFound   = "Notificação não encontrada."
	TextCarerIsOwner    = "Você já é o dono dos seus pets."
	TextNoConversation  = "Não foi possível iniciar a conversa agora, tente novamente."
	TextUserNotFoundFmt = "Usuário @%s não encontrado. Peça para ele se cadastrar com /cadastrar."

	yes = "Sim"
	no  = "Não"
)
