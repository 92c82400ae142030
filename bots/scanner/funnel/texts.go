package funnel

const (
	textWelcome = "🌿 <b>Привет! Я Сканер подсознания по Мета-Методу.</b>\n\n" +
		"По одной фотографии и твоему запросу я покажу, какие программы и родовые сценарии " +
		"мешают тебе получить желаемое, в каком состоянии твои энергетические центры " +
		"и какие фразы помогут это изменить.\n\n" +
		"Хочешь пройти сканирование?"

	textAbout = "🔮 <b>Как работает Сканер</b>\n\n" +
		"Сканер проходит через 5 этапов: программы → род → чакры → фразы → компоновка.\n\n" +
		"Ты получаешь персональный PDF-разбор:\n" +
		"• ключевые блоки и их корни\n" +
		"• состояние 7 энергетических центров в процентах\n" +
		"• трансформационные фразы на каждый день\n" +
		"• практические шаги под твой запрос"

	textExamples = "📂 <b>Примеры сканирований</b>\n\n" +
		"Выбери сферу, которая откликается тебе сейчас, и посмотри, как выглядит разбор 👇"

	textExamplesCTA = "Готова получить своё? 👇"

	textQuizCTA = "Хочешь такой же результат? 👇"

	textPricing = "💫 <b>Тарифы Сканера подсознания</b>\n\n" +
		"Выбери подходящий пакет и оплати по ссылке. " +
		"После оплаты нажми «Проверить оплату».\n\n" +
		"Если у тебя есть бесплатный доступ, напиши <code>checkdostup</code>."

	textCheckingPayment = "⏳ Проверяю статус оплаты...\nЭто может занять до 1 минуты."

	textPaymentNotFound = "❌ Оплата не найдена.\n" +
		"Пожалуйста, проверь:\n" +
		"1. Оплата прошла успешно\n" +
		"2. Прошло 1-2 минуты после оплаты\n\n" +
		"Если оплатила, попробуй через минуту:"

	textPaymentConfirmed = "✅ Оплата прошла, спасибо! 🙏\n\n" + textPhotoPrompt

	textPaymentReceived = "💳 Оплата получена! Нажми «Проверить оплату», чтобы начать сканирование."

	textPhotoPrompt = "📸 Отправь своё фото (селфи или портрет) и в подписи к нему напиши запрос.\n\n" +
		"Например: <i>Меня зовут Анна, хочу выйти на новый уровень дохода</i>"

	textFreeScanWelcome = "🌿 Добро пожаловать!\n\n" +
		"Ты можешь пройти сканирование прямо сейчас.\n\n" +
		"Отправь мне своё фото (селфи в полный рост или портрет), " +
		"и я проведу диагностику твоего энергетического состояния 💫"

	textAccessPrompt = "🔑 <b>Проверка бесплатного доступа</b>\n\n" +
		"Напиши почту, которую ты указывала при регистрации."

	textAccessVerifying = "⏳ Проверяю доступ..."

	textAccessNotFound = "😔 Доступ для этой почты не найден.\n\n" +
		"Проверь, нет ли опечатки, и попробуй ещё раз."

	textAccessAlreadyUsed = "⚠️ Этот доступ уже был активирован ранее"

	textAccessGranted = "🎉 <b>Доступ активирован!</b>\n\n" +
		"Действует до %s (осталось дней: %d).\n\n" + textPhotoPrompt

	textRequestPrompt = "Отлично! Фото получено. ✨\n\n" +
		"Теперь напиши свой запрос. Например:\n" +
		"• Не хватает финансов, хочу выйти на новый уровень дохода\n" +
		"• Хочу встретить свою судьбу и построить счастливые отношения\n" +
		"• Хочу реализоваться и перестать бояться проявляться публично\n" +
		"• Что блокирует мой бизнес/здоровье/творчество?"

	textNamePrompt = "Для персонализации анализа, пожалуйста, напиши своё имя.\n\n" +
		"Например: Анна, Дмитрий, Мария"

	textNameRetry = "Не получилось распознать имя 🙈 Напиши, пожалуйста, только имя, например: Анна"

	textRequestSavedSendPhoto = "Отлично! Запрос получен. ✨\n\nТеперь отправь своё фото для анализа."

	textNameSavedSendPhoto = "Отлично! Теперь отправь своё фото для анализа. ✨"

	textPhotoFirst = "Сначала отправь фото! Используй /start для начала."

	textProcessing = "⏳ Провожу глубокий многоуровневый анализ...\n" +
		"Это займёт 2-3 минуты.\n" +
		"Я прохожу через 5 этапов: программы → род → чакры → фразы → компоновка 🔮✨"

	textAnalysisFailed = "❌ Произошла ошибка при анализе.\n" +
		"Попробуй ещё раз через /start\n\n" +
		"Ошибка: %s"

	textGenericFailure = "❌ Произошла ошибка. Попробуй позже или начни заново через /start\n\n" +
		"Ошибка: %s"

	textRemaining = "У тебя осталось %d сканирований.\nХочешь провести ещё один анализ?"

	textUnlimitedMore = "Хочешь провести ещё один анализ?"

	textLastScan = "Это было твоё последнее доступное сканирование 🌿\n" +
		"Приобрети новый пакет для продолжения работы:"

	textNoCredits = "У тебя закончились доступные сканирования 😔\n" +
		"Приобрети новый пакет для продолжения работы:"

	textNeedPayment = "Для использования Сканера необходимо оплатить доступ 🌿"

	textUseMenu = "Выбери вариант в меню выше 👆"

	textStaleButton = "Эта кнопка сейчас недоступна. Нажми /start, чтобы начать заново."

	textRestart = "Пожалуйста, начни с команды /start"

	textCancelled = "Хорошо, остановились 🙏\nЧтобы начать заново, нажми /start"
)

const (
	btnWantScan     = "Да, хочу пройти сканирование"
	btnMore         = "Хочу узнать подробнее"
	btnStartScan    = "📸 Перейти к сканированию"
	btnExamples     = "📂 Посмотреть примеры сканирования"
	btnGoScan       = "⚡ Пройти сканирование"
	btnOwnScan      = "✨ Хочу своё сканирование"
	btnAboutMore    = "✨ Узнать про Сканер подробнее"
	btnBack         = "🔙 Вернуться к описанию"
	btnCheckPayment = "✅ Проверить оплату"
	btnRetryPayment = "🔄 Попробовать снова"
	btnRetryEmail   = "🔄 Попробовать ещё раз"
	btnOtherEmail   = "🔄 Попробовать другую почту"
	btnNewAnalysis  = "Провести новый анализ"
	btnPayAccess    = "💫 Оплатить доступ"
	btnQuizMoney    = "💰 Деньги"
	btnQuizLove     = "❤️ Любовь"
	btnQuizHealth   = "🌿 Здоровье"
	btnQuizRealize  = "✨ Реализация"
)

var quizExamples = map[string]string{
	TagQuizMoney: "💰 <b>Пример: сфера денег</b>\n\n" +
		"«Анна, твой денежный поток сейчас сдерживает родовая программа " +
		"\"деньги достаются тяжёлым трудом\". Центр Манипура открыт на 58%...»\n\n" +
		"В разборе ты найдёшь фразы, которые снимают этот запрет.",
	TagQuizLove: "❤️ <b>Пример: сфера любви</b>\n\n" +
		"«Мария, в сердечном центре видна защита после старой боли: " +
		"Анахата открыта на 61%. Программа \"любить опасно\" пришла по женской линии...»\n\n" +
		"В разборе ты найдёшь шаги к открытию сердца.",
	TagQuizHealth: "🌿 <b>Пример: сфера здоровья</b>\n\n" +
		"«Елена, тело сигнализирует об усталости: Муладхара открыта на 64%, " +
		"энергия уходит на постоянный контроль...»\n\n" +
		"В разборе ты найдёшь практики восстановления.",
	TagQuizRealization: "✨ <b>Пример: сфера реализации</b>\n\n" +
		"«Ольга, страх проявляться связан с программой \"не высовывайся\". " +
		"Вишудха открыта на 55%...»\n\n" +
		"В разборе ты найдёшь фразы для смелого проявления.",
}
