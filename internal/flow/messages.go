package flow

// Replies sent by the agent wizard.
const (
	MsgGreeting         = "Hello Agent! Choose your secret weapon."
	MsgAskHat           = "Hello Agent! Choose your hat."
	MsgAskOutfit        = "Hello Agent! Choose your outfit color."
	MsgAggregating      = "Aggregating new prompt..."
	MsgImageReadyFormat = "Here is your image: %s"
	MsgAskMint          = "Would you like to mint this image as an NFT? Reply 'yes' or 'no'."
	MsgGenerationFailed = "Failed to generate image."
	MsgRetryGeneration  = "Reply 'yes' to try generating again or 'no' to restart."
	MsgCapReached       = "You've reached the maximum number of generations."
	MsgUploading        = "Uploading image to IPFS..."
	MsgAskWallet        = "Please provide your wallet address."
	MsgPinFailed        = "Failed to upload to IPFS."
	MsgRestarting       = "Restarting..."
	MsgWelcomeBack      = "Welcome back! Choose your secret weapon."
	MsgMinting          = "Minting your NFT, this may take a few moments..."
	MsgMintFailed       = "Minting failed due to a blockchain error. Please try again later."
	MsgReplyYesNo       = "Please reply 'yes' to mint or 'no' to restart."

	// MsgMintedFormat takes the tx hash, the explorer tx URL and the metadata URL.
	MsgMintedFormat = "NFT minted successfully! Transaction hash: [%s](%s), Metadata: [View on IPFS](%s)"
)
