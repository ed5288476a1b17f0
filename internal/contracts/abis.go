package contracts

// lpTokenABIJSON covers both Platypus LP assets (balanceOf) and the Pangolin PTP-yyPTP pair (getReserves).
const lpTokenABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getReserves", "outputs": [
    {"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
    {"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
    {"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
  ], "stateMutability": "view", "type": "function"}
]`

const stakingABIJSON = `[
  {"inputs": [], "name": "internalBalance", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const masterPlatypusV3ABIJSON = `[
  {"inputs": [], "name": "ptpPerSec", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalAdjustedAllocPoint", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "poolLength", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "dialutingRepartition", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "nonDialutingRepartition", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "name": "poolInfo", "outputs": [
    {"internalType": "contract IAsset", "name": "lpToken", "type": "address"},
    {"internalType": "uint256", "name": "baseAllocPoint", "type": "uint256"},
    {"internalType": "uint256", "name": "lastRewardTimestamp", "type": "uint256"},
    {"internalType": "uint256", "name": "accPtpPerShare", "type": "uint256"},
    {"internalType": "contract IRewarder", "name": "rewarder", "type": "address"},
    {"internalType": "uint256", "name": "sumOfFactors", "type": "uint256"},
    {"internalType": "uint256", "name": "accPtpPerFactorShare", "type": "uint256"},
    {"internalType": "uint256", "name": "adjustedAllocPoint", "type": "uint256"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}, {"internalType": "address", "name": "", "type": "address"}], "name": "userInfo", "outputs": [
    {"internalType": "uint256", "name": "amount", "type": "uint256"},
    {"internalType": "uint256", "name": "rewardDebt", "type": "uint256"},
    {"internalType": "uint256", "name": "factor", "type": "uint256"}
  ], "stateMutability": "view", "type": "function"}
]`
