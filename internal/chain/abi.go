package chain

// jyTokenABI is the assumed interface of the deployed JY token contract. The
// bookkeeping methods (convert, stake, unstake, claim) are operator-restricted
// and take the beneficiary address explicitly.
const jyTokenABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"convertCEPointsToJY","stateMutability":"nonpayable",
   "inputs":[{"name":"beneficiary","type":"address"},{"name":"cePoints","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"stake","stateMutability":"nonpayable",
   "inputs":[{"name":"beneficiary","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"requestUnstake","stateMutability":"nonpayable",
   "inputs":[{"name":"beneficiary","type":"address"}],
   "outputs":[]},
  {"type":"function","name":"unstake","stateMutability":"nonpayable",
   "inputs":[{"name":"beneficiary","type":"address"}],
   "outputs":[]},
  {"type":"function","name":"claimRewards","stateMutability":"nonpayable",
   "inputs":[{"name":"beneficiary","type":"address"}],
   "outputs":[]},
  {"type":"function","name":"calculateRewards","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"depositRevenue","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256"},{"name":"source","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"getStakeInfo","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[
     {"name":"amount","type":"uint256"},
     {"name":"startTime","type":"uint256"},
     {"name":"lastClaimTime","type":"uint256"},
     {"name":"pendingRewards","type":"uint256"},
     {"name":"unstakeRequestTime","type":"uint256"},
     {"name":"unstakeUnlockTime","type":"uint256"}]},
  {"type":"function","name":"getStakingStats","stateMutability":"view",
   "inputs":[],
   "outputs":[
     {"name":"totalStaked","type":"uint256"},
     {"name":"totalStakers","type":"uint256"},
     {"name":"currentAPR","type":"uint256"},
     {"name":"totalYieldDistributed","type":"uint256"},
     {"name":"availableYieldPool","type":"uint256"}]},
  {"type":"function","name":"getYieldPoolStatus","stateMutability":"view",
   "inputs":[],
   "outputs":[
     {"name":"available","type":"uint256"},
     {"name":"totalDeposited","type":"uint256"},
     {"name":"totalDistributed","type":"uint256"},
     {"name":"currentAPR","type":"uint256"},
     {"name":"projectedDays","type":"uint256"}]},
  {"type":"function","name":"getTokenStats","stateMutability":"view",
   "inputs":[],
   "outputs":[
     {"name":"totalSupply","type":"uint256"},
     {"name":"circulatingSupply","type":"uint256"},
     {"name":"totalBurned","type":"uint256"},
     {"name":"totalStaked","type":"uint256"},
     {"name":"contractBalance","type":"uint256"}]}
]`
