package keyword

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/segment"
)

// GeneralSplitter cuts the lower general zone into its cashier and
// date-time halves. *segment.Segmenter implements it.
type GeneralSplitter interface {
	SplitGeneral(general segment.Zone, cashierTop int) (cashier, dateTime segment.Zone, err error)
}

// GeneralInfo extracts the receipt header from the general zone.
//
// The whole zone is searched for every general keyword first. When the
// cashier line is found, the zone below it is split in half and the cashier
// and date/time keywords are searched again in their own halves; values
// found there replace the first-pass values.
func (e *Extractor) GeneralInfo(ctx context.Context, general segment.Zone, split GeneralSplitter) (receipt.GeneralInfo, receipt.Warnings, error) {
	first, err := e.Extract(ctx, general, GeneralKeywords())
	if err != nil {
		return receipt.GeneralInfo{}, nil, err
	}
	values := first.Values
	warnings := first.Warnings

	if m, ok := first.MatchFor(Cashier.Key()); ok {
		top := first.Tokens[m.TokenIndex].Top
		cashierZone, dateTimeZone, err := split.SplitGeneral(general, top)
		if err != nil {
			e.logger.Warn("cashier sub-split skipped", "error", err)
		} else {
			for _, pass := range []struct {
				zone     segment.Zone
				keywords []Keyword
			}{
				{cashierZone, []Keyword{Cashier}},
				{dateTimeZone, []Keyword{Date, Time}},
			} {
				sub, err := e.Extract(ctx, pass.zone, pass.keywords)
				if err != nil {
					return receipt.GeneralInfo{}, nil, fmt.Errorf("%s sub-zone: %w", pass.zone.Role, err)
				}
				for _, k := range pass.keywords {
					if sub.Found(k.Key()) {
						values[k.Key()] = sub.Values[k.Key()]
						warnings = dropMissing(warnings, k.Key())
					}
				}
			}
		}
	}

	return receipt.GeneralInfo{
		Name:          values[ObjectName.Key()],
		Address:       values[ObjectAddress.Key()],
		Code:          values[ObjectCode.Key()],
		TaxPayerName:  values[TaxpayerName.Key()],
		TIN:           values[TIN.Key()],
		ReceiptNumber: values[ReceiptNumber.Key()],
		Cashier:       values[Cashier.Key()],
		Date:          values[Date.Key()],
		Time:          values[Time.Key()],
	}, warnings, nil
}

func dropMissing(ws receipt.Warnings, field string) receipt.Warnings {
	out := ws[:0]
	for _, w := range ws {
		if w.Kind == receipt.FieldNotFound && w.Field == field {
			continue
		}
		out = append(out, w)
	}
	return out
}
