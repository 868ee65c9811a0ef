package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	vatABIJSON = `[
{"inputs":[{"internalType":"bytes32","name":"ilk","type":"bytes32"},{"internalType":"address","name":"urn","type":"address"}],"name":"urns","outputs":[{"internalType":"uint256","name":"ink","type":"uint256"},{"internalType":"uint256","name":"art","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"bytes32","name":"ilk","type":"bytes32"}],"name":"ilks","outputs":[{"internalType":"uint256","name":"Art","type":"uint256"},{"internalType":"uint256","name":"rate","type":"uint256"},{"internalType":"uint256","name":"spot","type":"uint256"},{"internalType":"uint256","name":"line","type":"uint256"},{"internalType":"uint256","name":"dust","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	managerABIJSON = `[
{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"first","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"cdp","type":"uint256"}],"name":"list","outputs":[{"internalType":"uint256","name":"prev","type":"uint256"},{"internalType":"uint256","name":"next","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"cdp","type":"uint256"}],"name":"urns","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"cdp","type":"uint256"}],"name":"ilks","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"cdp","type":"uint256"}],"name":"owns","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

	spotterABIJSON = `[
{"inputs":[{"internalType":"bytes32","name":"ilk","type":"bytes32"}],"name":"ilks","outputs":[{"internalType":"address","name":"pip","type":"address"},{"internalType":"uint256","name":"mat","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	jugABIJSON = `[
{"inputs":[{"internalType":"bytes32","name":"ilk","type":"bytes32"}],"name":"ilks","outputs":[{"internalType":"uint256","name":"duty","type":"uint256"},{"internalType":"uint256","name":"rho","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	ilkRegistryABIJSON = `[
{"inputs":[{"internalType":"bytes32","name":"ilk","type":"bytes32"}],"name":"info","outputs":[{"internalType":"string","name":"name","type":"string"},{"internalType":"string","name":"symbol","type":"string"},{"internalType":"uint256","name":"class","type":"uint256"},{"internalType":"uint256","name":"dec","type":"uint256"},{"internalType":"address","name":"gem","type":"address"},{"internalType":"address","name":"pip","type":"address"},{"internalType":"address","name":"join","type":"address"},{"internalType":"address","name":"xlip","type":"address"}],"stateMutability":"view","type":"function"}]`

	factoryABIJSON = `[
{"inputs":[{"internalType":"address","name":"tokenA","type":"address"},{"internalType":"address","name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"internalType":"address","name":"pair","type":"address"}],"stateMutability":"view","type":"function"}]`

	routerABIJSON = `[
{"inputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsIn","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}]`

	pairABIJSON = `[
{"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint112","name":"reserve0","type":"uint112"},{"internalType":"uint112","name":"reserve1","type":"uint112"},{"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"}]`

	poolProviderABIJSON = `[
{"inputs":[],"name":"getLendingPool","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

	lendingPoolABIJSON = `[
{"inputs":[],"name":"FLASHLOAN_PREMIUM_TOTAL","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	psmABIJSON = `[
{"inputs":[],"name":"tin","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"tout","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"gemJoin","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

	gemJoinABIJSON = `[
{"inputs":[],"name":"gem","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

	feeManagerABIJSON = `[
{"inputs":[{"internalType":"uint256","name":"grossAmount","type":"uint256"}],"name":"getFeeFromGrossAmount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	erc20ABIJSON = `[
{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}]`
)

var (
	vatABI         abi.ABI
	managerABI     abi.ABI
	spotterABI     abi.ABI
	jugABI         abi.ABI
	ilkRegistryABI abi.ABI
	factoryABI     abi.ABI
	routerABI      abi.ABI
	pairABI        abi.ABI
	providerABI    abi.ABI
	lendingPoolABI abi.ABI
	psmABI         abi.ABI
	gemJoinABI     abi.ABI
	feeManagerABI  abi.ABI
	erc20ABI       abi.ABI
)

func init() {
	for _, entry := range []struct {
		dst  *abi.ABI
		json string
	}{
		{&vatABI, vatABIJSON},
		{&managerABI, managerABIJSON},
		{&spotterABI, spotterABIJSON},
		{&jugABI, jugABIJSON},
		{&ilkRegistryABI, ilkRegistryABIJSON},
		{&factoryABI, factoryABIJSON},
		{&routerABI, routerABIJSON},
		{&pairABI, pairABIJSON},
		{&providerABI, poolProviderABIJSON},
		{&lendingPoolABI, lendingPoolABIJSON},
		{&psmABI, psmABIJSON},
		{&gemJoinABI, gemJoinABIJSON},
		{&feeManagerABI, feeManagerABIJSON},
		{&erc20ABI, erc20ABIJSON},
	} {
		parsed, err := abi.JSON(strings.NewReader(entry.json))
		if err != nil {
			panic("failed to parse contract ABI: " + err.Error())
		}
		*entry.dst = parsed
	}
}
