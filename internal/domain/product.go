package domain

// CadenceFamily семейство продуктов, определяющее расписание напоминаний
type CadenceFamily string

const (
	// CadenceMonthly напоминание на каждой месячной границе срока подписки
	CadenceMonthly CadenceFamily = "monthly"
	// CadenceMilestone фиксированные контрольные точки (3/6/9 месяцев)
	CadenceMilestone CadenceFamily = "milestone"
)

// Product представляет продукт каталога
type Product struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Family CadenceFamily `json:"family"`
}

// Идентификаторы продуктов каталога
const (
	ProductChatGPTPlus = "chatgpt-plus"
	ProductAdobeCC     = "adobe-cc"
	ProductCapCutPro   = "capcut-pro"
)

var catalog = map[string]Product{
	ProductChatGPTPlus: {ID: ProductChatGPTPlus, Name: "ChatGPT Plus", Family: CadenceMonthly},
	ProductAdobeCC:     {ID: ProductAdobeCC, Name: "Adobe Creative Cloud", Family: CadenceMilestone},
	ProductCapCutPro:   {ID: ProductCapCutPro, Name: "CapCut Pro", Family: CadenceMonthly},
}

// ProductByID возвращает продукт каталога по идентификатору
func ProductByID(id string) (Product, bool) {
	p, ok := catalog[id]
	return p, ok
}

// CadenceFor возвращает семейство расписания для продукта.
// Неизвестные продукты попадают в месячное семейство.
func CadenceFor(productID string) CadenceFamily {
	if p, ok := catalog[productID]; ok {
		return p.Family
	}
	return CadenceMonthly
}
