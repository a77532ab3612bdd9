package contracts

// DepositABI is the ABI of the Rubyscore_Deposit contract. The overloaded
// deposit functions bind as "deposit" (no recipient) and "deposit0" (with
// recipient).
const DepositABI = `[
  {"type":"constructor","stateMutability":"nonpayable","inputs":[
    {"name":"_admin","type":"address"},
    {"name":"_operator","type":"address"}]},

  {"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"deposit","stateMutability":"payable","inputs":[
    {"name":"_recipient","type":"address"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[
    {"name":"_from","type":"address"},
    {"name":"_to","type":"address"},
    {"name":"_amount","type":"uint256"},
    {"name":"_tax","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdrawBatch","stateMutability":"nonpayable","inputs":[
    {"name":"_from","type":"address[]"},
    {"name":"_to","type":"address[]"},
    {"name":"_amount","type":"uint256[]"},
    {"name":"_tax","type":"uint256[]"}],"outputs":[]},
  {"type":"function","name":"removeFunds","stateMutability":"nonpayable","inputs":[
    {"name":"_to","type":"address"},
    {"name":"_amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"addFunds","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"claimProfit","stateMutability":"nonpayable","inputs":[
    {"name":"_claimParams","type":"tuple","internalType":"struct Rubyscore_Deposit.ClaimParams","components":[
      {"name":"recipient","type":"address"},
      {"name":"amount","type":"uint256"},
      {"name":"userNonce","type":"uint256"}]},
    {"name":"_signature","type":"bytes"}],"outputs":[]},

  {"type":"function","name":"getUserDeposit","stateMutability":"view","inputs":[
    {"name":"_user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUserNonce","stateMutability":"view","inputs":[
    {"name":"_user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},

  {"type":"function","name":"DEFAULT_ADMIN_ROLE","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"OPERATOR_ROLE","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"hasRole","stateMutability":"view","inputs":[
    {"name":"role","type":"bytes32"},
    {"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getRoleAdmin","stateMutability":"view","inputs":[
    {"name":"role","type":"bytes32"}],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"grantRole","stateMutability":"nonpayable","inputs":[
    {"name":"role","type":"bytes32"},
    {"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"revokeRole","stateMutability":"nonpayable","inputs":[
    {"name":"role","type":"bytes32"},
    {"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"renounceRole","stateMutability":"nonpayable","inputs":[
    {"name":"role","type":"bytes32"},
    {"name":"callerConfirmation","type":"address"}],"outputs":[]},

  {"type":"event","name":"Deposit","anonymous":false,"inputs":[
    {"name":"user","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Withdrawal","anonymous":false,"inputs":[
    {"name":"user","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"tax","type":"uint256","indexed":false}]},
  {"type":"event","name":"Claimed","anonymous":false,"inputs":[
    {"name":"user","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"RoleGranted","anonymous":false,"inputs":[
    {"name":"role","type":"bytes32","indexed":true},
    {"name":"account","type":"address","indexed":true},
    {"name":"sender","type":"address","indexed":true}]},
  {"type":"event","name":"RoleRevoked","anonymous":false,"inputs":[
    {"name":"role","type":"bytes32","indexed":true},
    {"name":"account","type":"address","indexed":true},
    {"name":"sender","type":"address","indexed":true}]},

  {"type":"error","name":"AccessControlUnauthorizedAccount","inputs":[
    {"name":"account","type":"address"},
    {"name":"neededRole","type":"bytes32"}]},
  {"type":"error","name":"AccessControlBadConfirmation","inputs":[]}
]`
