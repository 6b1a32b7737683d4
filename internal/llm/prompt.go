package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPrompt es el template de traducción especializado en
// mantenimiento aeronáutico. Los placeholders ${targetText} y
// ${samples.sampleN_ja}/${samples.sampleN_en} (N=1..5) se sustituyen en
// BuildPrompt; el texto del template es parte del contrato con el
// upstream y se conserva tal cual.
const DefaultPrompt = `# 指示

以下の日本語テキストを英語に翻訳してください。
翻訳にあたっては、特に航空機整備や技術的な用語に対する正確性を重視してください。
翻訳の参考として、過去の翻訳サンプルを以下に示しています。
これらのサンプルを考慮し、整合性のある翻訳を行ってください。

# 翻訳対象のテキスト

` + "`${targetText}`" + `

# 参考翻訳サンプル

1. 日本語: ` + "`${samples.sample1_ja}`" + `
   英語: ` + "`${samples.sample1_en}`" + `
2. 日本語: ` + "`${samples.sample2_ja}`" + `
   英語: ` + "`${samples.sample2_en}`" + `
3. 日本語: ` + "`${samples.sample3_ja}`" + `
   英語: ` + "`${samples.sample3_en}`" + `
4. 日本語: ` + "`${samples.sample4_ja}`" + `
   英語: ` + "`${samples.sample4_en}`" + `
5. 日本語: ` + "`${samples.sample5_ja}`" + `
   英語: ` + "`${samples.sample5_en}`" + `

# 注意点
- 用語の一貫性を保ち、正確に翻訳すること。
- 原文の意味を忠実に反映すること。
- 航空機整備に関する技術用語は適切に訳すこと。
- 翻訳対象のテキストはOCRにより取得したものである。OCRのミスと考えられる部分はサンプルを参照して合理的な範囲内で適宜修正すること。
- 出力する翻訳結果はバッククオート等の記号で囲わず、テキスト本文のみを出力すること。

# 翻訳結果：
`

// DefaultNormalizePrompt convierte katakana a hiragana/kanji dejando el
// inglés intacto. Placeholder: {targetText}.
const DefaultNormalizePrompt = "以下の文章のカタカナをひらがなと漢字に置き換えてください。英語はそのままにしてください。\n\n{targetText}"

// BuildPrompt arma el prompt de traducción: texto objetivo más hasta
// cinco pares de muestra (sampleN_ja / sampleN_en). Muestras ausentes
// quedan como string vacío.
func (c *Client) BuildPrompt(targetText string, samples map[string]string) string {
	base := c.cfg.CustomPrompt
	if base == "" {
		base = DefaultPrompt
	}

	out := strings.ReplaceAll(base, "${targetText}", targetText)
	for i := 1; i <= 5; i++ {
		out = strings.ReplaceAll(out,
			fmt.Sprintf("${samples.sample%d_ja}", i), samples[fmt.Sprintf("sample%d_ja", i)])
		out = strings.ReplaceAll(out,
			fmt.Sprintf("${samples.sample%d_en}", i), samples[fmt.Sprintf("sample%d_en", i)])
	}
	return out
}

var (
	refNumberRe   = regexp.MustCompile(`\[\d+\]`)
	noAnswerTagRe = regexp.MustCompile(`(?i)\[(?:なし|None|N/A|該当なし|不明|無し|ない)\]`)
)

// CleanResult saca del texto traducido las marcas que el modelo cuela:
// referencias numeradas [1] y tags de "sin respuesta" en japonés/inglés.
func CleanResult(text string) string {
	if text == "" {
		return text
	}
	text = refNumberRe.ReplaceAllString(text, "")
	text = noAnswerTagRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
