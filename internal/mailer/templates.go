package mailer

import (
	"html/template"
)

// Email bodies are compiled in rather than loaded from disk; the catalog of
// messages is small and fixed.
var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "order_approved"}}
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Pedido confirmado! 🎉</h2>
  <p>Olá {{.Order.Customer.Name}},</p>
  <p>Recebemos o seu pagamento e o pedido <strong>{{.Order.ID}}</strong> já está sendo preparado.</p>
  <table border="0" cellpadding="6" cellspacing="0" style="border-collapse: collapse;">
    <tr style="background: #f4f4f4;"><th align="left">Produto</th><th>Qtd</th><th align="right">Preço</th></tr>
    {{range .Order.Items}}
    <tr><td>{{.Title}}</td><td align="center">{{.Quantity}}</td><td align="right">R$ {{printf "%.2f" .UnitPrice}}</td></tr>
    {{end}}
    <tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>R$ {{printf "%.2f" .Order.Total}}</strong></td></tr>
  </table>
  <p>Endereço de entrega: {{.Order.Customer.Address}}</p>
  <p>Obrigado por comprar na Teodoro Fitness!</p>
</body>
</html>
{{end}}

{{define "order_pending"}}
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Pedido recebido</h2>
  <p>Olá {{.Order.Customer.Name}},</p>
  <p>Seu pedido <strong>{{.Order.ID}}</strong> foi registrado e o pagamento está em processamento
  (status: {{.Order.Status}}). Você receberá uma confirmação assim que for aprovado.</p>
  <p>Total: <strong>R$ {{printf "%.2f" .Order.Total}}</strong></p>
  <p>Teodoro Fitness</p>
</body>
</html>
{{end}}

{{define "operator_notice"}}
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Novo pedido: {{.Order.ID}}</h2>
  <p>Status: <strong>{{.Order.Status}}</strong> ({{.Order.Gateway}}, transação {{.Order.TransactionID}})</p>
  <p>Cliente: {{.Order.Customer.Name}} &lt;{{.Order.Customer.Email}}&gt; - {{.Order.Customer.Phone}}</p>
  <p>Endereço: {{.Order.Customer.Address}}</p>
  <ul>
    {{range .Order.Items}}<li>{{.Quantity}}x {{.Title}} (R$ {{printf "%.2f" .UnitPrice}})</li>{{end}}
  </ul>
  <p>Total: <strong>R$ {{printf "%.2f" .Order.Total}}</strong></p>
</body>
</html>
{{end}}

{{define "low_stock_alert"}}
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>⚠️ Alerta de estoque baixo</h2>
  <p>Os produtos abaixo atingiram o limite mínimo de estoque:</p>
  <ul>
    {{range .Products}}<li><strong>{{.Title}}</strong>: {{.Quantity}} unidade(s) restante(s) (limite: {{.LowStockThreshold}})</li>{{end}}
  </ul>
  <p>Reponha o estoque pelo painel administrativo.</p>
</body>
</html>
{{end}}
`))
