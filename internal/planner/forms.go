package planner

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Field keeps a form input's raw text alongside its parsed fixed-point value.
// The text is what the user typed; the value is what the planner consumes.
type Field struct {
	Text     string
	Value    *big.Int
	Decimals uint8
	Err      string
}

// Form is an ordered set of fields with an optional side-effect hook per
// field, for inputs whose edit must adjust a sibling.
type Form struct {
	fields map[string]*Field
	hooks  map[string]func(*Form)
}

// NewForm constructs an empty form.
func NewForm() *Form {
	return &Form{
		fields: make(map[string]*Field),
		hooks:  make(map[string]func(*Form)),
	}
}

// Define registers a field with the token precision its text is expressed in.
func (f *Form) Define(name string, decimals uint8) {
	f.fields[name] = &Field{Value: new(big.Int), Decimals: decimals}
}

// OnSet registers a hook run after the named field is assigned.
func (f *Form) OnSet(name string, hook func(*Form)) {
	f.hooks[name] = hook
}

// Set parses raw text into the field's fixed-point value. Parse failures are
// recorded on the field and leave the previous value untouched; the hook only
// runs on a successful parse.
func (f *Form) Set(name, text string) {
	field, ok := f.fields[name]
	if !ok {
		return
	}
	field.Text = text

	if text == "" {
		field.Value = new(big.Int)
		field.Err = ""
		f.runHook(name)
		return
	}

	d, err := decimal.NewFromString(text)
	if err != nil || d.IsNegative() {
		field.Err = "invalid amount"
		return
	}
	field.Err = ""
	field.Value = d.Shift(int32(field.Decimals)).Truncate(0).BigInt()
	f.runHook(name)
}

// SetValue assigns a parsed value directly and re-renders the text, as a
// sibling-adjustment hook does.
func (f *Form) SetValue(name string, v *big.Int) {
	field, ok := f.fields[name]
	if !ok {
		return
	}
	field.Value = new(big.Int).Set(v)
	field.Text = decimal.NewFromBigInt(v, -int32(field.Decimals)).String()
	field.Err = ""
}

// Value returns the field's parsed value, zero when absent.
func (f *Form) Value(name string) *big.Int {
	if field, ok := f.fields[name]; ok {
		return field.Value
	}
	return new(big.Int)
}

// Text returns the field's raw text.
func (f *Form) Text(name string) string {
	if field, ok := f.fields[name]; ok {
		return field.Text
	}
	return ""
}

// ParseErrors collects per-field parse failures.
func (f *Form) ParseErrors() FieldErrors {
	errs := FieldErrors{}
	for name, field := range f.fields {
		if field.Err != "" {
			errs.Add(name, field.Err)
		}
	}
	return errs
}

func (f *Form) runHook(name string) {
	if hook, ok := f.hooks[name]; ok {
		hook(f)
	}
}

// WipeAndFreeForm is the WipeAndFree input form. Its two repayment-split
// fields are linked: editing one adjusts the other so their sum always equals
// the flash-loan-plus-fees total.
type WipeAndFreeForm struct {
	*Form
	total *big.Int // nil until SetTotal fixes the split sum
}

// NewWipeAndFreeForm builds the form. All amounts are 18-decimal: DAI and
// LP collateral both use WAD precision.
func NewWipeAndFreeForm() *WipeAndFreeForm {
	f := NewForm()
	f.Define("daiToPayback", 18)
	f.Define("daiFromSigner", 18)
	f.Define("collateralToFree", 18)
	f.Define("collateralToUseToPayFlashLoan", 18)
	f.Define("daiFromTokenA", 18)
	f.Define("daiFromTokenB", 18)

	w := &WipeAndFreeForm{Form: f}
	f.OnSet("daiFromTokenA", func(f *Form) {
		w.rebalance("daiFromTokenA", "daiFromTokenB")
	})
	f.OnSet("daiFromTokenB", func(f *Form) {
		w.rebalance("daiFromTokenB", "daiFromTokenA")
	})
	return w
}

// SetTotal fixes the sum the two split fields must preserve and re-derives
// the B side from the current A side.
func (w *WipeAndFreeForm) SetTotal(total *big.Int) {
	w.total = new(big.Int).Set(total)
	w.rebalance("daiFromTokenA", "daiFromTokenB")
}

// rebalance pins sibling = total - edited, clamping the edited side into
// [0, total] first so the invariant holds after every edit. Before a total
// is fixed, edits stand alone.
func (w *WipeAndFreeForm) rebalance(edited, sibling string) {
	if w.total == nil {
		return
	}
	v := w.Value(edited)
	if v.Cmp(w.total) > 0 {
		v = new(big.Int).Set(w.total)
		w.SetValue(edited, v)
	}
	w.SetValue(sibling, new(big.Int).Sub(w.total, v))
}

// Params materialises the form into planner parameters.
func (w *WipeAndFreeForm) Params(tolerance *big.Int, deadlineMinutes int64, receiveEth bool) WipeAndFreeParams {
	return WipeAndFreeParams{
		DaiToPayback:                  w.Value("daiToPayback"),
		DaiFromSigner:                 w.Value("daiFromSigner"),
		CollateralToFree:              w.Value("collateralToFree"),
		CollateralToUseToPayFlashLoan: w.Value("collateralToUseToPayFlashLoan"),
		DaiFromTokenA:                 w.Value("daiFromTokenA"),
		DaiFromTokenB:                 w.Value("daiFromTokenB"),
		SlippageTolerance:             tolerance,
		DeadlineMinutes:               deadlineMinutes,
		ReceiveEth:                    receiveEth,
	}
}

// LockAndDrawForm is the LockAndDraw input form.
type LockAndDrawForm struct {
	*Form
}

// NewLockAndDrawForm builds the form with per-token text precision.
func NewLockAndDrawForm(tokenADecimals, tokenBDecimals uint8) *LockAndDrawForm {
	f := NewForm()
	f.Define("tokenAToLock", tokenADecimals)
	f.Define("tokenBToLock", tokenBDecimals)
	f.Define("tokenAFromSigner", tokenADecimals)
	f.Define("tokenBFromSigner", tokenBDecimals)
	f.Define("daiFromSigner", 18)
	f.Define("collateralFromUser", 18)
	return &LockAndDrawForm{Form: f}
}

// Params materialises the form into planner parameters.
func (l *LockAndDrawForm) Params(tolerance *big.Int, deadlineMinutes int64, useEth bool) LockAndDrawParams {
	return LockAndDrawParams{
		TokenAToLock:       l.Value("tokenAToLock"),
		TokenBToLock:       l.Value("tokenBToLock"),
		TokenAFromSigner:   l.Value("tokenAFromSigner"),
		TokenBFromSigner:   l.Value("tokenBFromSigner"),
		DaiFromSigner:      l.Value("daiFromSigner"),
		CollateralFromUser: l.Value("collateralFromUser"),
		SlippageTolerance:  tolerance,
		DeadlineMinutes:    deadlineMinutes,
		UseEth:             useEth,
	}
}
