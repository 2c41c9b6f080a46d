package ethereum

// Minimal ABI fragments for the three engine contracts. Only the methods
// the connector actually invokes are declared.

const ledgerABI = `[
  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[
    {"name":"asset","type":"address"},{"name":"lockScript","type":"bytes32"},
    {"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[
    {"name":"asset","type":"address"},{"name":"from","type":"address"},
    {"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"transferAsset","stateMutability":"nonpayable","inputs":[
    {"name":"asset","type":"address"},{"name":"from","type":"address"},
    {"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"approveAsset","stateMutability":"nonpayable","inputs":[
    {"name":"asset","type":"address"},{"name":"owner","type":"address"},
    {"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"unwrap","stateMutability":"nonpayable","inputs":[
    {"name":"wrapped","type":"address"},{"name":"holder","type":"address"},
    {"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
    {"name":"asset","type":"address"},{"name":"holder","type":"address"}],
    "outputs":[{"name":"","type":"uint256"}]}
]`

const transportABI = `[
  {"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[
    {"name":"depositor","type":"address"},{"name":"recipient","type":"bytes32"},
    {"name":"inputAsset","type":"address"},{"name":"outputAsset","type":"address"},
    {"name":"inputAmount","type":"uint256"},{"name":"outputAmount","type":"uint256"},
    {"name":"destDomain","type":"uint32"},{"name":"exclusiveFiller","type":"bytes32"},
    {"name":"quoteTime","type":"uint64"},{"name":"fillDeadline","type":"uint64"},
    {"name":"message","type":"bytes"}],"outputs":[]}
]`

const verifierABI = `[
  {"type":"function","name":"verifyDeposit","stateMutability":"view","inputs":[
    {"name":"proof","type":"bytes"}],"outputs":[
    {"name":"txId","type":"bytes32"},{"name":"sourceDomain","type":"uint32"},
    {"name":"lockScript","type":"bytes32"},{"name":"inputAsset","type":"address"},
    {"name":"amount","type":"uint256"},{"name":"recipient","type":"bytes32"},
    {"name":"destDomain","type":"uint32"},{"name":"destAsset","type":"address"},
    {"name":"networkFee","type":"uint256"},{"name":"thirdPartyId","type":"uint32"},
    {"name":"path","type":"address[]"}]}
]`

const distributorABI = `[
  {"type":"function","name":"distribute","stateMutability":"nonpayable","inputs":[
    {"name":"lockScript","type":"bytes32"},{"name":"asset","type":"address"},
    {"name":"amount","type":"uint256"}],"outputs":[]}
]`

const exchangeABI = `[
  {"type":"function","name":"swap","stateMutability":"nonpayable","inputs":[
    {"name":"amountIn","type":"uint256"},{"name":"amountBound","type":"uint256"},
    {"name":"path","type":"address[]"},{"name":"recipient","type":"address"},
    {"name":"deadline","type":"uint64"},{"name":"fixedInput","type":"bool"}],
    "outputs":[{"name":"success","type":"bool"},{"name":"amounts","type":"uint256[]"}]}
]`
