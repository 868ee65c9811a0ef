// Package calldata serialises validated plans into the exact ABI layout the
// executing contract's flash-loan callback decodes. Field order is part of
// the wire contract: any reordering is silent corruption, so the layouts here
// are fixed and covered by round-trip golden tests.
package calldata

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Operation tags the inner payload kind.
type Operation uint8

const (
	// OpLockAndDraw opens or increases a leveraged position.
	OpLockAndDraw Operation = 0
	// OpWipeAndFree repays debt and withdraws collateral.
	OpWipeAndFree Operation = 1
)

func (op Operation) String() string {
	switch op {
	case OpLockAndDraw:
		return "lockAndDraw"
	case OpWipeAndFree:
		return "wipeAndFree"
	default:
		return fmt.Sprintf("operation(%d)", uint8(op))
	}
}

var (
	typeUint8        abi.Type
	typeUint256      abi.Type
	typeBool         abi.Type
	typeBytes        abi.Type
	typeAddress      abi.Type
	typeAddressSlice abi.Type

	outerArgs abi.Arguments
	lockArgs  abi.Arguments
	wipeArgs  abi.Arguments
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic("failed to build abi type " + name + ": " + err.Error())
	}
	return t
}

func args(types ...abi.Type) abi.Arguments {
	out := make(abi.Arguments, len(types))
	for i, t := range types {
		out[i] = abi.Argument{Type: t}
	}
	return out
}

func init() {
	typeUint8 = mustType("uint8")
	typeUint256 = mustType("uint256")
	typeBool = mustType("bool")
	typeBytes = mustType("bytes")
	typeAddress = mustType("address")
	typeAddressSlice = mustType("address[]")

	outerArgs = args(typeUint8, typeBytes)

	lockArgs = args(
		typeAddress,      // sender
		typeAddress,      // debtToken
		typeAddress,      // router
		typeAddress,      // psm
		typeAddress,      // token0
		typeUint256,      // debtTokenForToken0
		typeAddressSlice, // pathFromDebtTokenToToken0
		typeBool,         // psmBuyToken0
		typeUint256,      // token0FromUser
		typeAddress,      // token1
		typeUint256,      // debtTokenForToken1
		typeAddressSlice, // pathFromDebtTokenToToken1
		typeBool,         // psmBuyToken1
		typeUint256,      // token1FromUser
		typeUint256,      // minCollateralToBuy
		typeUint256,      // collateralFromUser
		typeAddress,      // gemToken
		typeAddress,      // dsProxy
		typeAddress,      // dsProxyActions
		typeAddress,      // manager
		typeAddress,      // jug
		typeAddress,      // gemJoin
		typeAddress,      // daiJoin
		typeUint256,      // cdp
		typeUint256,      // debtTokenToDraw
		typeBool,         // transferFrom
		typeUint256,      // deadline
		typeAddress,      // weth
		typeBool,         // useEth
	)

	wipeArgs = args(
		typeAddress,      // sender
		typeAddress,      // debtToken
		typeAddress,      // router
		typeAddress,      // psm
		typeAddress,      // tokenA
		typeUint256,      // debtToCoverWithTokenA
		typeAddressSlice, // pathTokenAToDebtToken
		typeBool,         // psmSellTokenA
		typeAddress,      // tokenB
		typeUint256,      // debtToCoverWithTokenB
		typeAddressSlice, // pathTokenBToDebtToken
		typeBool,         // psmSellTokenB
		typeUint256,      // debtTokenFromSigner
		typeUint256,      // collateralToFree
		typeUint256,      // collateralToUseToPayDebt
		typeUint256,      // minTokenAToReceive
		typeUint256,      // minTokenBToReceive
		typeAddress,      // gemToken
		typeAddress,      // dsProxy
		typeAddress,      // dsProxyActions
		typeAddress,      // manager
		typeAddress,      // gemJoin
		typeAddress,      // daiJoin
		typeUint256,      // cdp
		typeUint256,      // debtTokenToPayback
		typeBool,         // isPayingWholeDebt
		typeUint256,      // deadline
		typeAddress,      // weth
		typeBool,         // receiveEth
	)
}

// LockAndDrawData is the 29-field inner tuple of a LockAndDraw payload, in
// wire order.
type LockAndDrawData struct {
	Sender                    common.Address
	DebtToken                 common.Address
	Router                    common.Address
	Psm                       common.Address
	Token0                    common.Address
	DebtTokenForToken0        *big.Int
	PathFromDebtTokenToToken0 []common.Address
	PsmBuyToken0              bool
	Token0FromUser            *big.Int
	Token1                    common.Address
	DebtTokenForToken1        *big.Int
	PathFromDebtTokenToToken1 []common.Address
	PsmBuyToken1              bool
	Token1FromUser            *big.Int
	MinCollateralToBuy        *big.Int
	CollateralFromUser        *big.Int
	GemToken                  common.Address
	DsProxy                   common.Address
	DsProxyActions            common.Address
	Manager                   common.Address
	Jug                       common.Address
	GemJoin                   common.Address
	DaiJoin                   common.Address
	Cdp                       *big.Int
	DebtTokenToDraw           *big.Int
	TransferFrom              bool
	Deadline                  *big.Int
	Weth                      common.Address
	UseEth                    bool
}

// WipeAndFreeData is the 29-field inner tuple of a WipeAndFree payload, in
// wire order.
type WipeAndFreeData struct {
	Sender                   common.Address
	DebtToken                common.Address
	Router                   common.Address
	Psm                      common.Address
	TokenA                   common.Address
	DebtToCoverWithTokenA    *big.Int
	PathTokenAToDebtToken    []common.Address
	PsmSellTokenA            bool
	TokenB                   common.Address
	DebtToCoverWithTokenB    *big.Int
	PathTokenBToDebtToken    []common.Address
	PsmSellTokenB            bool
	DebtTokenFromSigner      *big.Int
	CollateralToFree         *big.Int
	CollateralToUseToPayDebt *big.Int
	MinTokenAToReceive       *big.Int
	MinTokenBToReceive       *big.Int
	GemToken                 common.Address
	DsProxy                  common.Address
	DsProxyActions           common.Address
	Manager                  common.Address
	GemJoin                  common.Address
	DaiJoin                  common.Address
	Cdp                      *big.Int
	DebtTokenToPayback       *big.Int
	IsPayingWholeDebt        bool
	Deadline                 *big.Int
	Weth                     common.Address
	ReceiveEth               bool
}

func emptyPath(p []common.Address) []common.Address {
	if p == nil {
		return []common.Address{}
	}
	return p
}

// EncodeLockAndDraw packs a LockAndDraw payload as (uint8 tag, bytes inner).
func EncodeLockAndDraw(d LockAndDrawData) ([]byte, error) {
	inner, err := lockArgs.Pack(
		d.Sender, d.DebtToken, d.Router, d.Psm,
		d.Token0, d.DebtTokenForToken0, emptyPath(d.PathFromDebtTokenToToken0), d.PsmBuyToken0, d.Token0FromUser,
		d.Token1, d.DebtTokenForToken1, emptyPath(d.PathFromDebtTokenToToken1), d.PsmBuyToken1, d.Token1FromUser,
		d.MinCollateralToBuy, d.CollateralFromUser,
		d.GemToken, d.DsProxy, d.DsProxyActions, d.Manager, d.Jug, d.GemJoin, d.DaiJoin,
		d.Cdp, d.DebtTokenToDraw, d.TransferFrom, d.Deadline, d.Weth, d.UseEth,
	)
	if err != nil {
		return nil, fmt.Errorf("pack lockAndDraw payload: %w", err)
	}
	return packOuter(OpLockAndDraw, inner)
}

// EncodeWipeAndFree packs a WipeAndFree payload as (uint8 tag, bytes inner).
func EncodeWipeAndFree(d WipeAndFreeData) ([]byte, error) {
	inner, err := wipeArgs.Pack(
		d.Sender, d.DebtToken, d.Router, d.Psm,
		d.TokenA, d.DebtToCoverWithTokenA, emptyPath(d.PathTokenAToDebtToken), d.PsmSellTokenA,
		d.TokenB, d.DebtToCoverWithTokenB, emptyPath(d.PathTokenBToDebtToken), d.PsmSellTokenB,
		d.DebtTokenFromSigner, d.CollateralToFree, d.CollateralToUseToPayDebt,
		d.MinTokenAToReceive, d.MinTokenBToReceive,
		d.GemToken, d.DsProxy, d.DsProxyActions, d.Manager, d.GemJoin, d.DaiJoin,
		d.Cdp, d.DebtTokenToPayback, d.IsPayingWholeDebt, d.Deadline, d.Weth, d.ReceiveEth,
	)
	if err != nil {
		return nil, fmt.Errorf("pack wipeAndFree payload: %w", err)
	}
	return packOuter(OpWipeAndFree, inner)
}

func packOuter(op Operation, inner []byte) ([]byte, error) {
	out, err := outerArgs.Pack(uint8(op), inner)
	if err != nil {
		return nil, fmt.Errorf("pack outer tuple: %w", err)
	}
	return out, nil
}

// DecodeOperation unpacks the outer tuple, returning the tag and inner bytes.
func DecodeOperation(data []byte) (Operation, []byte, error) {
	out, err := outerArgs.Unpack(data)
	if err != nil {
		return 0, nil, fmt.Errorf("unpack outer tuple: %w", err)
	}
	if len(out) != 2 {
		return 0, nil, fmt.Errorf("unexpected outer tuple arity %d", len(out))
	}
	tag, ok := out[0].(uint8)
	if !ok {
		return 0, nil, fmt.Errorf("unexpected tag type %T", out[0])
	}
	inner, ok := out[1].([]byte)
	if !ok {
		return 0, nil, fmt.Errorf("unexpected payload type %T", out[1])
	}
	return Operation(tag), inner, nil
}

// DecodeLockAndDraw unpacks a full LockAndDraw calldata blob.
func DecodeLockAndDraw(data []byte) (LockAndDrawData, error) {
	var d LockAndDrawData
	tag, inner, err := DecodeOperation(data)
	if err != nil {
		return d, err
	}
	if tag != OpLockAndDraw {
		return d, fmt.Errorf("expected %s payload, got %s", OpLockAndDraw, tag)
	}
	out, err := lockArgs.Unpack(inner)
	if err != nil {
		return d, fmt.Errorf("unpack lockAndDraw payload: %w", err)
	}
	if len(out) != len(lockArgs) {
		return d, fmt.Errorf("unexpected lockAndDraw arity %d", len(out))
	}

	d.Sender = out[0].(common.Address)
	d.DebtToken = out[1].(common.Address)
	d.Router = out[2].(common.Address)
	d.Psm = out[3].(common.Address)
	d.Token0 = out[4].(common.Address)
	d.DebtTokenForToken0 = out[5].(*big.Int)
	d.PathFromDebtTokenToToken0 = out[6].([]common.Address)
	d.PsmBuyToken0 = out[7].(bool)
	d.Token0FromUser = out[8].(*big.Int)
	d.Token1 = out[9].(common.Address)
	d.DebtTokenForToken1 = out[10].(*big.Int)
	d.PathFromDebtTokenToToken1 = out[11].([]common.Address)
	d.PsmBuyToken1 = out[12].(bool)
	d.Token1FromUser = out[13].(*big.Int)
	d.MinCollateralToBuy = out[14].(*big.Int)
	d.CollateralFromUser = out[15].(*big.Int)
	d.GemToken = out[16].(common.Address)
	d.DsProxy = out[17].(common.Address)
	d.DsProxyActions = out[18].(common.Address)
	d.Manager = out[19].(common.Address)
	d.Jug = out[20].(common.Address)
	d.GemJoin = out[21].(common.Address)
	d.DaiJoin = out[22].(common.Address)
	d.Cdp = out[23].(*big.Int)
	d.DebtTokenToDraw = out[24].(*big.Int)
	d.TransferFrom = out[25].(bool)
	d.Deadline = out[26].(*big.Int)
	d.Weth = out[27].(common.Address)
	d.UseEth = out[28].(bool)
	return d, nil
}

// DecodeWipeAndFree unpacks a full WipeAndFree calldata blob.
func DecodeWipeAndFree(data []byte) (WipeAndFreeData, error) {
	var d WipeAndFreeData
	tag, inner, err := DecodeOperation(data)
	if err != nil {
		return d, err
	}
	if tag != OpWipeAndFree {
		return d, fmt.Errorf("expected %s payload, got %s", OpWipeAndFree, tag)
	}
	out, err := wipeArgs.Unpack(inner)
	if err != nil {
		return d, fmt.Errorf("unpack wipeAndFree payload: %w", err)
	}
	if len(out) != len(wipeArgs) {
		return d, fmt.Errorf("unexpected wipeAndFree arity %d", len(out))
	}

	d.Sender = out[0].(common.Address)
	d.DebtToken = out[1].(common.Address)
	d.Router = out[2].(common.Address)
	d.Psm = out[3].(common.Address)
	d.TokenA = out[4].(common.Address)
	d.DebtToCoverWithTokenA = out[5].(*big.Int)
	d.PathTokenAToDebtToken = out[6].([]common.Address)
	d.PsmSellTokenA = out[7].(bool)
	d.TokenB = out[8].(common.Address)
	d.DebtToCoverWithTokenB = out[9].(*big.Int)
	d.PathTokenBToDebtToken = out[10].([]common.Address)
	d.PsmSellTokenB = out[11].(bool)
	d.DebtTokenFromSigner = out[12].(*big.Int)
	d.CollateralToFree = out[13].(*big.Int)
	d.CollateralToUseToPayDebt = out[14].(*big.Int)
	d.MinTokenAToReceive = out[15].(*big.Int)
	d.MinTokenBToReceive = out[16].(*big.Int)
	d.GemToken = out[17].(common.Address)
	d.DsProxy = out[18].(common.Address)
	d.DsProxyActions = out[19].(common.Address)
	d.Manager = out[20].(common.Address)
	d.GemJoin = out[21].(common.Address)
	d.DaiJoin = out[22].(common.Address)
	d.Cdp = out[23].(*big.Int)
	d.DebtTokenToPayback = out[24].(*big.Int)
	d.IsPayingWholeDebt = out[25].(bool)
	d.Deadline = out[26].(*big.Int)
	d.Weth = out[27].(common.Address)
	d.ReceiveEth = out[28].(bool)
	return d, nil
}
