package opensandbox

// Version is the release version of this SDK.
const Version = "0.3.1"

const userAgent = "opensandbox-go/" + Version
