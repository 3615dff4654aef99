package pricing

import (
	"fmt"
	"math"

	"github.com/Six9one/twinbite-order-sub002/internal/model"
)

// TVARate — ставка НДС на продажу готовых блюд.
const TVARate = 0.10

// SplitTVA раскладывает сумму с включённым НДС на составляющие HT/TVA/TTC.
// Отрицательные и нечисловые значения отклоняются.
func SplitTVA(gross float64) (model.TaxBreakdown, error) {
	if math.IsNaN(gross) || math.IsInf(gross, 0) || gross < 0 {
		return model.TaxBreakdown{}, fmt.Errorf("%w: gross %v", ErrInvalidAmount, gross)
	}

	ht := gross / (1 + TVARate)
	return model.TaxBreakdown{
		HT:  ht,
		TVA: gross - ht,
		TTC: gross,
	}, nil
}

// SplitTVACents раскладывает сумму в центах, округляя налог до цента.
// Инвариант ht + tva == gross сохраняется точно.
func SplitTVACents(grossCents int64) (ht, tva int64, err error) {
	if grossCents < 0 {
		return 0, 0, fmt.Errorf("%w: gross %d", ErrInvalidAmount, grossCents)
	}

	ht = int64(math.Round(float64(grossCents) / (1 + TVARate)))
	return ht, grossCents - ht, nil
}
