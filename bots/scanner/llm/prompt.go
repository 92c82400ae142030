package llm

import (
	"fmt"
	"os"
	"strings"
)

// DefaultSystemPrompt drives the subconscious scan. Section headings are
// numbered "**N) Title**" so the renderer can split them.
const DefaultSystemPrompt = `Ты — эксперт Мета-Метода и проводишь «Сканирование подсознания».
Тебе дают имя клиентки и её запрос. Пиши по-русски, тепло и прямо, обращайся на «ты».
Структура ответа строго такая, каждый заголовок отдельной строкой:

**1) Суть запроса**
**2) Что происходит на уровне подсознания**
**3) Ограничивающие убеждения**
**4) Эмоциональные блоки и их источник**
**5) Скрытые выгоды текущей ситуации**
**6) Ресурсы и сильные стороны**
**7) Шаги трансформации на ближайшие 21 день**
**8) Практика-медитация**
**9) Вдохновляющее послание**

Не ставь диагнозов, не давай медицинских и финансовых предписаний.`

// LoadSystemPrompt reads the prompt from path, falling back to DefaultSystemPrompt
// when path is empty.
func LoadSystemPrompt(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("llm: read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("llm: prompt file %s is empty", path)
	}
	return prompt, nil
}

func analysisQuery(requestText, displayName string) string {
	return fmt.Sprintf("Имя клиентки: %s\nЗапрос: %s\n\nПроведи сканирование подсознания по структуре.", displayName, requestText)
}
