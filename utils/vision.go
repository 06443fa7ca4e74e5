package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Wladyslaw13/ScanBotan/models"
)

// Vision analysis through the Together AI chat-completions API. The model is
// instructed to answer with strict JSON; answers are re-extracted by brace
// matching and retried once on a fallback model.

var (
	togetherBaseURL = "https://api.together.xyz/v1"

	visionModelPrimary  = "mistralai/Ministral-3-14B-Instruct-2512"
	visionModelFallback = "Qwen/Qwen3-VL-32B-Instruct"
)

const visionSystemPrompt = `Верни ТОЛЬКО валидный JSON.
Никакого текста, markdown, комментариев.

Если растение не распознано или растений в кадре много что мешает распознаванию какого-то определённого, верни plantFound: false, в reason верни строку с причиной ошибки распознавания.

Формат СТРОГО:
{
  "plantFound": boolean,
  "plantName": string | null,
  "healthCondition": string | null,
  "recommendations": string[],
  "reason": string | null
}

Язык: русский.`

const visionUserPrompt = "Определи растение, его состояние здоровья и дай краткие, но полезные рекомендации по уходу."

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImagePart `json:"image_url,omitempty"`
}

type chatImagePart struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// AnalyzePlantImage sends the image (as a data URL) to the vision model and
// returns the parsed report.
func AnalyzePlantImage(dataURL string) (*models.ScanResult, error) {
	apiKey := os.Getenv("TOGETHER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("TOGETHER_API_KEY is required in environment variables")
	}

	text, err := visionCompletion(apiKey, visionModelPrimary, dataURL, 0.2)
	if err != nil {
		return nil, err
	}

	result := extractScanResult(text)
	if result == nil {
		// the model sometimes wraps the JSON in prose; retry stricter
		text, err = visionCompletion(apiKey, visionModelFallback, dataURL, 0)
		if err != nil {
			return nil, err
		}
		result = extractScanResult(text)
	}

	if result == nil {
		LogError(nil, "Vision model returned unparseable output")
		return nil, fmt.Errorf("не удалось распознать ответ модели")
	}

	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}
	return result, nil
}

func visionCompletion(apiKey, model, dataURL string, temperature float64) (string, error) {
	reqBody := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: visionSystemPrompt},
			{Role: "user", Content: []chatContentPart{
				{Type: "text", Text: visionUserPrompt},
				{Type: "image_url", ImageURL: &chatImagePart{URL: dataURL}},
			}},
		},
		Temperature: temperature,
		MaxTokens:   600,
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error encoding request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, togetherBaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("together API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("error decoding response: %v", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("together API returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// extractScanResult pulls the first balanced JSON object out of the model
// output and decodes it. Returns nil when nothing decodable is found.
func extractScanResult(text string) *models.ScanResult {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil
	}
	var result models.ScanResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil
	}
	return &result
}

func extractJSONObject(text string) string {
	start := -1
	depth := 0

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start != -1 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
