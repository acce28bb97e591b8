package email

import (
	"bytes"
	"fmt"
	"html/template"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; color: #333;">
  <div style="text-align: center; margin-bottom: 30px;">
    <h1 style="color: #c96442;">Sua compra foi confirmada!</h1>
  </div>

  <p>Olá, <strong>{{.BuyerName}}</strong>!</p>

  <p>Obrigado por adquirir <strong>{{.ProductName}}</strong>.</p>

  <p>Seu pagamento de <strong>{{.Amount}}</strong> foi processado com sucesso.</p>

  <div style="background-color: #f9f9f9; padding: 20px; border-radius: 8px; margin: 30px 0; text-align: center;">
    <p style="margin-bottom: 20px; font-size: 16px;">Seu produto digital já está disponível para download:</p>
    <a href="{{.ProductLink}}" style="background-color: #c96442; color: white; padding: 15px 30px; text-decoration: none; border-radius: 6px; font-weight: bold; font-size: 16px; display: inline-block;">
      Baixar Meu Livro
    </a>
  </div>

  <p style="font-size: 14px;">Se o botão acima não funcionar, copie e cole o seguinte link no seu navegador:</p>
  <p style="font-size: 12px; color: #666; word-break: break-all;">
    <a href="{{.ProductLink}}" style="color: #c96442;">{{.ProductLink}}</a>
  </p>

  <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;" />

  <p style="font-size: 12px; color: #888; text-align: center;">
    Livraria Digital - Todos os direitos reservados.<br>
    Este é um e-mail automático, por favor não responda.
  </p>
</div>
`))

// FormatAmount renders an amount in major units as "R$ 19.99".
func FormatAmount(amount float64) string {
	return fmt.Sprintf("R$ %.2f", amount)
}

// Render produces the HTML body for msg.
func Render(msg Message) (string, error) {
	var buf bytes.Buffer
	err := confirmationTmpl.Execute(&buf, struct {
		BuyerName   string
		ProductName string
		ProductLink string
		Amount      string
	}{
		BuyerName:   msg.BuyerName,
		ProductName: msg.ProductName,
		ProductLink: msg.ProductLink,
		Amount:      FormatAmount(msg.Amount),
	})
	if err != nil {
		return "", fmt.Errorf("render confirmation email: %w", err)
	}
	return buf.String(), nil
}
