package services

import (
	"fmt"
	"strings"

	"github.com/cobranca-bot/cobranca-backend/internal/models"
)

// BuildSystemPrompt extends the configured base prompt with everything
// the model needs to negotiate: the customer's debt details when the
// phone is registered, or an explicit warning when it is not.
func BuildSystemPrompt(base string, customer *models.Customer) string {
	if customer == nil {
		return base + "\n\nATENÇÃO: Este número não está cadastrado no sistema. " +
			"Pergunte o nome da pessoa e informe que você precisa verificar a situação dela."
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n=== INFORMAÇÕES DO CLIENTE ===\n")
	fmt.Fprintf(&b, "Nome: %s\n", customer.Name)
	fmt.Fprintf(&b, "Telefone: %s\n", customer.Phone)
	if customer.Document != "" {
		fmt.Fprintf(&b, "CPF/CNPJ: %s\n", customer.Document)
	}
	fmt.Fprintf(&b, "Valor Devido: R$ %.2f\n", customer.AmountDue)
	fmt.Fprintf(&b, "Data de Vencimento: %s\n", orDefault(customer.DueDate, "Não informada"))
	fmt.Fprintf(&b, "Número da Fatura/Proposta: %s\n", orDefault(customer.InvoiceNumber, "Não informado"))
	fmt.Fprintf(&b, "Status: %s\n", customer.Status)
	if customer.OverdueInstallments > 0 {
		fmt.Fprintf(&b, "Parcelas Vencidas: %d\n", customer.OverdueInstallments)
	}

	if customer.VehiclePlate != "" || customer.VehicleBrand != "" ||
		customer.VehicleModel != "" || customer.VehicleChassis != "" {
		b.WriteString("\n=== INFORMAÇÕES DO VEÍCULO ===\n")
		if customer.VehiclePlate != "" {
			fmt.Fprintf(&b, "Placa: %s\n", customer.VehiclePlate)
		}
		if customer.VehicleBrand != "" {
			fmt.Fprintf(&b, "Marca: %s\n", customer.VehicleBrand)
		}
		if customer.VehicleModel != "" {
			fmt.Fprintf(&b, "Modelo: %s\n", customer.VehicleModel)
		}
		if customer.VehicleChassis != "" {
			fmt.Fprintf(&b, "Chassi: %s\n", customer.VehicleChassis)
		}
	}

	if customer.ContractStatus != "" {
		fmt.Fprintf(&b, "\nStatus do Contrato: %s\n", customer.ContractStatus)
	}
	if customer.Seller != "" {
		fmt.Fprintf(&b, "Vendedor: %s\n", customer.Seller)
	}
	fmt.Fprintf(&b, "Observações: %s\n", orDefault(customer.Notes, "Nenhuma"))

	fmt.Fprintf(&b,
		"\nIMPORTANTE: Você está falando com %s. Use essas informações para negociar o pagamento de R$ %.2f.",
		customer.Name, customer.AmountDue)

	return b.String()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
