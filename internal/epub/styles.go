package epub

// BaseStylesheet is a baseline reset shipped with every encoded package.
const BaseStylesheet = `html, body {
  margin: 0;
  padding: 0;
}

body {
  font-family: serif;
  line-height: 1.5;
}

img {
  max-width: 100%;
  height: auto;
}
`

// PageStylesheet sizes the page container and clips overflow.
const PageStylesheet = `.page-content {
  box-sizing: border-box;
  position: relative;
  width: 100%;
  overflow: hidden;
}

.page-content img {
  max-width: 100%;
}
`
