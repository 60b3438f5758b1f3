package core

// SplitSale divides a sale price into royalty, platform fee and seller
// shares using floor division, identically for direct purchases and offer
// acceptance. Both percentages are capped (50 and 20) so the seller share is
// never negative. The three shares always sum to exactly price: the seller
// share absorbs whatever flooring takes off the other two.
//
// The decomposition price = 100*q + r keeps the multiplication far below
// uint64 overflow for any realistic price: q*pct + floor(r*pct/100) equals
// floor(price*pct/100) exactly.
func SplitSale(price, royaltyPercent, feePercent uint64) (royalty, fee, seller uint64) {
	royalty = floorPercent(price, royaltyPercent)
	fee = floorPercent(price, feePercent)
	seller = price - royalty - fee
	return royalty, fee, seller
}

func floorPercent(amount, percent uint64) uint64 {
	q, r := amount/100, amount%100
	return q*percent + r*percent/100
}

// CreditPending accrues amount into addr's withdrawable balance. Zero
// credits are dropped so the ledger never carries empty entries.
func CreditPending(s State, addr string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	cur, err := s.GetPending(addr)
	if err != nil {
		return err
	}
	return s.SetPending(addr, cur+amount)
}

// Settle performs the shared sale settlement for buy and accept_offer:
// ownership moves to buyer, the listing is cleared, the fee accrues to the
// market accumulator and royalty/seller shares accrue to pending balances.
// When the author still owns the asset the royalty and seller shares are
// combined into a single pending entry. Both the asset and the market
// record are written back; events are the caller's concern.
func Settle(s State, m *Market, a *Asset, buyer string, price uint64) (royalty, fee, sellerAmount uint64, err error) {
	royalty, fee, sellerAmount = SplitSale(price, a.RoyaltyPercent, m.PlatformFeePercent)

	author, seller := a.Author, a.Owner

	a.Owner = buyer
	a.ForSale = false
	a.Price = 0
	if err := s.SetAsset(a); err != nil {
		return 0, 0, 0, err
	}

	m.CollectedFees += fee
	if err := s.SetMarket(m); err != nil {
		return 0, 0, 0, err
	}

	if author != seller {
		if err := CreditPending(s, author, royalty); err != nil {
			return 0, 0, 0, err
		}
		if err := CreditPending(s, seller, sellerAmount); err != nil {
			return 0, 0, 0, err
		}
	} else {
		if err := CreditPending(s, seller, sellerAmount+royalty); err != nil {
			return 0, 0, 0, err
		}
	}
	return royalty, fee, sellerAmount, nil
}
