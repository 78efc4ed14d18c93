package documents

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/DieForGlory/process-peredach/src/crm"
	"github.com/DieForGlory/process-peredach/src/models"
	docx "github.com/fumiama/go-docx"
)

// Per-group client notification texts. Placeholders: client name, apartment
// number.
var notificationTexts = map[models.GroupKey]string{
	models.GroupNoIssues:        "Уважаемый(ая) %s, по вашей квартире №%s нет расхождений по площади и отсутствуют задолженности. Приглашаем вас для получения ключей.",
	models.GroupDebtOnly:        "Уважаемый(ая) %s, по вашей квартире №%s нет расхождений по площади, однако имеется задолженность. Просим вас погасить её перед получением ключей.",
	models.GroupDebtAndIncrease: "Уважаемый(ая) %s, по вашей квартире №%s имеется задолженность и зафиксировано увеличение площади более чем на 2 кв.м. Просим вас обратиться в офис для проведения доплаты и получения ключей.",
	models.GroupDebtAndDecrease: "Уважаемый(ая) %s, по вашей квартире №%s имеется задолженность и зафиксировано уменьшение площади более чем на 2 кв.м. Просим вас обратиться в офис для проведения взаиморасчетов и получения ключей.",
	models.GroupIncreaseOnly:    "Уважаемый(ая) %s, по вашей квартире №%s отсутствуют задолженности, но зафиксировано увеличение площади более чем на 2 кв.м. Просим вас обратиться в офис для проведения доплаты и получения ключей.",
	models.GroupDecreaseOnly:    "Уважаемый(ая) %s, по вашей квартире №%s отсутствуют задолженности, но зафиксировано уменьшение площади более чем на 2 кв.м. Просим вас обратиться в офис для проведения взаиморасчетов и получения ключей.",
}

const defaultNotificationText = "Уведомление для клиента %s по квартире №%s."

func clientOrDefault(name string) string {
	if name == "" {
		return "Клиент"
	}
	return name
}

// Notification renders the group's notification document for one deal.
func Notification(deal models.CategorizedDeal, group models.GroupKey) (*bytes.Buffer, error) {
	text, ok := notificationTexts[group]
	if !ok {
		text = defaultNotificationText
	}

	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().AddText(fmt.Sprintf(text, clientOrDefault(deal.ClientName), deal.PropertyID))

	buf := new(bytes.Buffer)
	if _, err := doc.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("error rendering notification for unit %s: %w", deal.PropertyID, err)
	}
	return buf, nil
}

// GroupArchive bundles one notification per deal into a zip, one docx named
// after the apartment number.
func GroupArchive(deals []models.CategorizedDeal, group models.GroupKey) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	for _, deal := range deals {
		docBuf, err := Notification(deal, group)
		if err != nil {
			return nil, err
		}
		entry, err := zw.Create(fmt.Sprintf("%s.docx", deal.PropertyID))
		if err != nil {
			return nil, fmt.Errorf("error creating archive entry for unit %s: %w", deal.PropertyID, err)
		}
		if _, err := entry.Write(docBuf.Bytes()); err != nil {
			return nil, fmt.Errorf("error writing archive entry for unit %s: %w", deal.PropertyID, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("error finalizing archive: %w", err)
	}
	return buf, nil
}

// UnilateralAct renders the one-sided handover act issued when the client
// failed to appear within the handover window.
func UnilateralAct(details *crm.DealDetails) (*bytes.Buffer, error) {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText("ОДНОСТОРОННИЙ АКТ ПРИЕМА-ПЕРЕДАЧИ").Bold().Size("32")

	p := doc.AddParagraph()
	p.AddText(fmt.Sprintf("Настоящий акт составлен в связи с неявкой клиента (%s) ", clientOrDefault(details.ClientName))).Bold()
	p.AddText("в установленный 30-дневный срок для приёмки квартиры №")
	p.AddText(details.PropertyID).Bold()
	p.AddText(".")

	buf := new(bytes.Buffer)
	if _, err := doc.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("error rendering unilateral act for deal %d: %w", details.DealID, err)
	}
	return buf, nil
}

// AcceptanceAct renders the two-sided handover act the client signs on a
// successful visit.
func AcceptanceAct(details *crm.DealDetails) (*bytes.Buffer, error) {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText("АКТ ПРИЕМА-ПЕРЕДАЧИ КВАРТИРЫ").Bold().Size("32")

	p := doc.AddParagraph()
	p.AddText("Застройщик передает, а клиент (")
	p.AddText(clientOrDefault(details.ClientName)).Bold()
	p.AddText(") принимает квартиру №")
	p.AddText(details.PropertyID).Bold()
	p.AddText(". Стороны взаимных претензий по состоянию квартиры не имеют, если ниже не указано иное.")

	doc.AddParagraph().AddText("Подпись клиента: ____________________")
	doc.AddParagraph().AddText("Подпись представителя застройщика: ____________________")

	buf := new(bytes.Buffer)
	if _, err := doc.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("error rendering acceptance act for deal %d: %w", details.DealID, err)
	}
	return buf, nil
}
