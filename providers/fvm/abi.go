package fvm

// Contract ABIs for the provenance registry and the service-payment
// contract deployed on the FVM chain.

const registryABIJSON = `[
  {
    "type": "function",
    "name": "registerAsset",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "_owner", "type": "address"},
      {"name": "_assetType", "type": "string"},
      {"name": "_name", "type": "string"},
      {"name": "_primaryCid", "type": "string"},
      {"name": "_metadataCid", "type": "string"},
      {"name": "_sourceCid", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getAssetByCid",
    "stateMutability": "view",
    "inputs": [{"name": "_cid", "type": "string"}],
    "outputs": [
      {"name": "owner", "type": "address"},
      {"name": "assetType", "type": "string"},
      {"name": "name", "type": "string"},
      {"name": "primaryCid", "type": "string"},
      {"name": "metadataCid", "type": "string"},
      {"name": "sourceCid", "type": "string"},
      {"name": "registeredAt", "type": "uint256"}
    ]
  },
  {
    "type": "function",
    "name": "getAssetsByOwner",
    "stateMutability": "view",
    "inputs": [{"name": "_owner", "type": "address"}],
    "outputs": [{"name": "cids", "type": "string[]"}]
  }
]`

const paymentABIJSON = `[
  {
    "type": "function",
    "name": "payForService",
    "stateMutability": "payable",
    "inputs": [
      {"name": "_serviceType", "type": "string"},
      {"name": "_nonce", "type": "string"}
    ],
    "outputs": []
  }
]`
