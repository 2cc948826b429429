package domain

import "github.com/shopspring/decimal"

// PendingLine is a pending item joined with its system line.
type PendingLine struct {
	Item        PendingItem
	Description string
	Amount      decimal.Decimal
	DueDate     string
}

// AreaNotification is the per-area summary sent to the area's recipient.
type AreaNotification struct {
	RunID     string
	RunTitle  string
	BankName  string
	Area      Area
	Recipient string
	Message   string
	Lines     []PendingLine
}

// AreaPending groups the active pending items of one area.
type AreaPending struct {
	Area       Area
	Open       int
	InProgress int
	Lines      []PendingLine
}

// PendingByArea groups active pending items by configured area, in area order.
// Areas without active items are still listed.
func (r *Run) PendingByArea(areas Areas) []AreaPending {
	out := make([]AreaPending, 0, len(areas))
	for _, area := range areas {
		group := AreaPending{Area: area, Lines: []PendingLine{}}
		for _, p := range r.PendingItems {
			if p.Area != area || !p.IsActive() {
				continue
			}
			if p.Status == PendingOpen {
				group.Open++
			} else {
				group.InProgress++
			}
			group.Lines = append(group.Lines, r.pendingLine(p))
		}
		out = append(out, group)
	}
	return out
}

func (r *Run) pendingLine(p PendingItem) PendingLine {
	pl := PendingLine{Item: p}
	if l, ok := r.SystemLine(p.SystemLineID); ok {
		pl.Description = l.Description
		pl.Amount = l.Amount
		if l.DueDate != nil {
			pl.DueDate = l.DueDate.Format(DateLayout)
		}
	}
	return pl
}
